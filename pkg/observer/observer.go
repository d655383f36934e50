package observer

type EventType int

const (
	SnapshotEvent EventType = 1
	HistoryEvent  EventType = 2
	BackfillEvent EventType = 3
)

type Event struct {
	E      EventType
	CoinID string
	Count  int
}

func NewHistoryEvent(coinID string, count int) Event {
	return Event{E: HistoryEvent, CoinID: coinID, Count: count}
}

type Observer interface {
	OnNotify(Event)
}

type Notifier interface {
	RegisterObserver(Observer)
}
