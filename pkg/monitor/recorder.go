package monitor

import (
	"sync"
	"time"
)

// PollRecorder records the last N poll times so that gaps, typically
// caused by system sleep, can be noticed.
type PollRecorder struct {
	MaxRecordCount int
	LastPollTimes  []time.Time
	mu             *sync.Mutex

	// now is a test seam; defaults to time.Now.
	now func() time.Time
}

// NewPollRecorder returns a new PollRecorder.
func NewPollRecorder(maxRecordCount int) *PollRecorder {
	return &PollRecorder{
		MaxRecordCount: maxRecordCount,
		LastPollTimes:  make([]time.Time, 0),
		mu:             &sync.Mutex{},
		now:            time.Now,
	}
}

func (r *PollRecorder) since(t time.Time) time.Duration {
	return r.now().Round(0).Sub(t)
}

// AddRecordNow adds a new record with the current time.
func (r *PollRecorder) AddRecordNow() {
	r.AddRecord(r.now())
}

// AddRecord adds a new record.
func (r *PollRecorder) AddRecord(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Strip monotonic clock reading. Otherwise durations spanning a system
	// sleep come out too short.
	t = t.Round(0)

	if len(r.LastPollTimes) >= r.MaxRecordCount {
		r.LastPollTimes = r.LastPollTimes[1:]
	}
	r.LastPollTimes = append(r.LastPollTimes, t)
}

// ClearRecords clears all records.
func (r *PollRecorder) ClearRecords() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.LastPollTimes = make([]time.Time, 0)
}

// Len returns the number of records.
func (r *PollRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.LastPollTimes)
}

// GetLastRecord returns the last record.
func (r *PollRecorder) GetLastRecord() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.LastPollTimes) == 0 {
		return time.Time{}
	}
	return r.LastPollTimes[len(r.LastPollTimes)-1]
}

// GetRecordsIn returns the number of continuous records in the last
// duration. Two adjacent records are continuous when they are less than
// interval+1s apart.
func (r *PollRecorder) GetRecordsIn(last, interval time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	gap := interval + time.Second

	// The last record must be recent enough.
	if len(r.LastPollTimes) > 0 && r.since(r.LastPollTimes[len(r.LastPollTimes)-1]) >= gap {
		return 0
	}

	count := 0
	for i := len(r.LastPollTimes) - 1; i >= 0; i-- {
		record := r.LastPollTimes[i]
		if r.since(record) > last {
			break
		}

		theRecordAfter := record
		if i+1 < len(r.LastPollTimes) {
			theRecordAfter = r.LastPollTimes[i+1]
		}

		if theRecordAfter.Sub(record) >= gap {
			break
		}
		count++
	}

	return count
}

// GetLastRecords returns the records of the last duration, newest first.
func (r *PollRecorder) GetLastRecords(last time.Duration) []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []time.Time
	for i := len(r.LastPollTimes) - 1; i >= 0; i-- {
		record := r.LastPollTimes[i]
		if r.since(record) > last {
			break
		}
		records = append(records, record)
	}
	return records
}

func (r *PollRecorder) formatRelativeTimes(times []time.Time) []string {
	var s []string
	for _, t := range times {
		s = append(s, r.since(t).String())
	}
	return s
}
