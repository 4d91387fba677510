package constants

const (
	RoomStatusWaiting  = "waiting"
	RoomStatusPlaying  = "playing"
	RoomStatusFinished = "finished"
)

const (
	PhaseQuestion = "question"
	PhaseAnswer   = "answer"
	PhaseResults  = "results"
	PhaseFinished = "finished"
)

const (
	ChatTypePlayer = "player"
	ChatTypeSystem = "system"
)

const (
	ActionJoined       = "joined"
	ActionLeft         = "left"
	ActionKicked       = "kicked"
	ActionDisconnected = "disconnected"
	ActionReconnected  = "reconnected"
	ActionHostChanged  = "host_changed"
)

const (
	CloseReasonHost  = "closed_by_host"
	CloseReasonEmpty = "empty"
	CloseReasonIdle  = "expired"
)

const (
	QueueResultsReady = "quiz.results_ready"
)
