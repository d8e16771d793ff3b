package turso

const insertUserIfAbsent = `
INSERT INTO users (id, created_at) VALUES (?, ?)
ON CONFLICT(id) DO NOTHING`

// A redelivered unrated event never erases a stored rating.
const upsertWatchSession = `
INSERT INTO watch_sessions (
    user_id, id, browser_session_id, video_id, title, channel,
    duration_seconds, watched_seconds, watched_percent, source, is_short,
    playback_speed, productivity_rating, rated_at, timestamp, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id, id) DO UPDATE SET
    productivity_rating = COALESCE(excluded.productivity_rating, watch_sessions.productivity_rating),
    rated_at = COALESCE(excluded.rated_at, watch_sessions.rated_at)`

const upsertBrowserSession = `
INSERT INTO browser_sessions (
    user_id, id, tab_id, started_at, ended_at, duration_seconds,
    active_seconds, background_seconds, videos_watched, shorts_count,
    search_count, recommendation_clicks, autoplay_count, video_ids,
    exit_type, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id, id) DO UPDATE SET
    tab_id = excluded.tab_id,
    started_at = excluded.started_at,
    ended_at = excluded.ended_at,
    duration_seconds = excluded.duration_seconds,
    active_seconds = excluded.active_seconds,
    background_seconds = excluded.background_seconds,
    videos_watched = excluded.videos_watched,
    shorts_count = excluded.shorts_count,
    search_count = excluded.search_count,
    recommendation_clicks = excluded.recommendation_clicks,
    autoplay_count = excluded.autoplay_count,
    video_ids = excluded.video_ids,
    exit_type = excluded.exit_type`

const insertSyncLog = `
INSERT INTO sync_log (user_id, synced_at, sessions_count, browser_sessions_count)
VALUES (?, ?, ?, ?)`

const selectWatchSessionsSince = `
SELECT id, browser_session_id, video_id, title, channel, duration_seconds,
       watched_seconds, watched_percent, source, is_short, playback_speed,
       productivity_rating, rated_at, timestamp
FROM watch_sessions
WHERE user_id = ? AND timestamp > ?
ORDER BY timestamp ASC, id ASC`

const selectBrowserSessionsSince = `
SELECT id, tab_id, started_at, ended_at, duration_seconds, active_seconds,
       background_seconds, videos_watched, shorts_count, search_count,
       recommendation_clicks, autoplay_count, video_ids, exit_type
FROM browser_sessions
WHERE user_id = ? AND COALESCE(ended_at, started_at) > ?
ORDER BY COALESCE(ended_at, started_at) ASC, id ASC`

const selectSettings = `
SELECT settings, settings_updated_at FROM users WHERE id = ?`

const upsertSettings = `
INSERT INTO users (id, created_at, settings, settings_updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    settings = excluded.settings,
    settings_updated_at = excluded.settings_updated_at`

const selectDailyBrowserTotals = `
SELECT COUNT(*),
       COALESCE(SUM(duration_seconds), 0),
       COALESCE(SUM(active_seconds), 0),
       COALESCE(SUM(background_seconds), 0),
       COALESCE(SUM(search_count), 0),
       COALESCE(SUM(recommendation_clicks), 0),
       COALESCE(SUM(autoplay_count), 0),
       MIN(started_at)
FROM browser_sessions
WHERE user_id = ? AND started_at >= ? AND started_at < ?`

const selectDailyWatchTotals = `
SELECT COUNT(*),
       COALESCE(SUM(is_short), 0),
       COALESCE(SUM(CASE WHEN productivity_rating = 1 THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN productivity_rating = -1 THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN productivity_rating = 0 THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN productivity_rating IS NOT NULL THEN 1 ELSE 0 END), 0)
FROM watch_sessions
WHERE user_id = ? AND timestamp >= ? AND timestamp < ?`

const selectTopChannels = `
SELECT channel, SUM(watched_seconds) AS seconds, COUNT(*)
FROM watch_sessions
WHERE user_id = ? AND timestamp >= ? AND channel IS NOT NULL AND channel != ''
GROUP BY channel
ORDER BY seconds DESC, channel ASC
LIMIT ?`
