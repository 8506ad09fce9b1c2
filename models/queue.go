package models

import "time"

// QueueEntry — эфемерная запись очереди. Живёт только в памяти
// планировщика; в БД сохраняется лишь флаг in_queue.
type QueueEntry struct {
	Nickname string
	Mode     Mode
	// Rating snapshot taken at enqueue time; pairing key for the pass.
	Rating   int
	JoinedAt time.Time
	// Notification channel reference of the enqueue surface, opaque to the core.
	ChannelID string
}
