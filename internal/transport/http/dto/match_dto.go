package dto

type MatchRequest struct {
	PoolID            int64 `json:"pool_id,omitempty"`
	DesiredSequenceID int64 `json:"desired_sequence_id,omitempty"`
}

type MatchResponse struct {
	Status      string            `json:"status"`
	SessionID   string            `json:"session_id,omitempty"`
	SessionType string            `json:"session_type,omitempty"`
	PeerID      int64             `json:"peer_id,omitempty"`
	VideoID     int64             `json:"video_id,omitempty"`
	VideoURL    string            `json:"video_url,omitempty"`
	Progress    *ProgressResponse `json:"updated_progress,omitempty"`
}

type ProgressResponse struct {
	SequenceID    int64 `json:"sequence_id"`
	VideosWatched int   `json:"videos_watched"`
	TotalVideos   int   `json:"total_videos"`
}

type LeaveQueueResponse struct {
	OK bool `json:"ok"`
}
