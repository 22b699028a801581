package materializer_test

import (
	"context"
	"sync"
	"time"

	"wisefido-care-scores/internal/models"
)

type pairKey struct {
	residentID int64
	domainID   int64
}

// fakeStore 内存实现 Directory / EventSource / ScoreSink，仅用于单元测试
type fakeStore struct {
	mu sync.Mutex

	residents []models.Resident
	domains   []models.Domain
	events    map[pairKey][]models.RawEvent
	rows      map[models.ScoreKey]models.ScoreRecord

	fetchErr   map[pairKey]error
	upsertErr  map[models.ScoreKey]error
	batchErr   error
	listErr    error
	fetchCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:    make(map[pairKey][]models.RawEvent),
		rows:      make(map[models.ScoreKey]models.ScoreRecord),
		fetchErr:  make(map[pairKey]error),
		upsertErr: make(map[models.ScoreKey]error),
	}
}

func (f *fakeStore) addEvent(residentID, domainID int64, ev models.RawEvent) {
	ev.ResidentID = residentID
	ev.DomainID = domainID
	k := pairKey{residentID, domainID}
	f.events[k] = append(f.events[k], ev)
}

func (f *fakeStore) ListActiveResidents(ctx context.Context, clientName string) ([]models.Resident, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Resident
	for _, r := range f.residents {
		if clientName == "" || r.ClientName == clientName {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ListDomains(ctx context.Context) ([]models.Domain, error) {
	return f.domains, nil
}

func (f *fakeStore) FetchEvents(ctx context.Context, residentID, domainID int64, start, end time.Time) ([]models.RawEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++

	k := pairKey{residentID, domainID}
	if err := f.fetchErr[k]; err != nil {
		return nil, err
	}
	var out []models.RawEvent
	for _, ev := range f.events[k] {
		if !ev.EventTimestamp.Before(start) && ev.EventTimestamp.Before(end) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// UpsertScores 事务语义：batchErr 时整批不生效
func (f *fakeStore) UpsertScores(ctx context.Context, records []models.ScoreRecord) ([]error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.batchErr != nil {
		return nil, f.batchErr
	}
	results := make([]error, len(records))
	for i, rec := range records {
		if err := f.upsertErr[rec.ScoreKey]; err != nil {
			results[i] = err
			continue
		}
		f.rows[rec.ScoreKey] = rec
	}
	return results, nil
}
