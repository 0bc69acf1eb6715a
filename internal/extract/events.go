package extract

// EventKind identifies a progress event
type EventKind int

const (
	MasksLoaded EventKind = iota
	GatherStarted
	GatherFinished
	SubjectDone
	SubjectFailed
	RegionWritten
	GroupWritten
)

var eventNames = [...]string{
	MasksLoaded:    "masks loaded",
	GatherStarted:  "started gathering data",
	GatherFinished: "finished gathering data",
	SubjectDone:    "subject done",
	SubjectFailed:  "subject failed",
	RegionWritten:  "region written",
	GroupWritten:   "group written",
}

func (k EventKind) String() string {
	if k >= 0 && int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

// Event reports progress. Fields that do not apply to a kind are zero.
type Event struct {
	Kind    EventKind
	Subject string
	Mask    string
	Group   string
	Path    string
	Count   int
	Err     error
}

// Observer receives progress events. It may be called from several goroutines at once.
type Observer func(Event)

func (e *Extractor) emit(ev Event) {
	if e.observer != nil {
		e.observer(ev)
	}
}
