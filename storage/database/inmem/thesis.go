package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/tasnifu/core/thesis"
)

type thesisRepository struct {
	db *thesisTable
}

var _ thesis.Repository = (*thesisRepository)(nil)

func NewThesisRepository(db *DB) thesis.Repository {
	return &thesisRepository{db: db.thesis}
}

func (repo *thesisRepository) get(id string) (thesis.Thesis, bool) {
	th, ok := repo.db.table[id]
	if !ok {
		return thesis.Thesis{}, false
	}
	cp := *th
	cp.Feedback = append([]thesis.FeedbackEntry(nil), repo.db.feedback[id]...)
	return cp, true
}

func (repo *thesisRepository) query() []thesis.Thesis {
	theses := make([]thesis.Thesis, 0, len(repo.db.table))
	for id := range repo.db.table {
		th, _ := repo.get(id)
		theses = append(theses, th)
	}
	sort.Slice(theses, func(i, j int) bool { return theses[i].CreatedAt.After(theses[j].CreatedAt) })
	return theses
}

func (repo *thesisRepository) CreateThesis(_ context.Context, th thesis.Thesis) (thesis.Thesis, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if th.ID == "" {
		th.ID = uuid.New().String()
	}
	cp := th
	cp.Feedback = nil
	repo.db.table[th.ID] = &cp
	repo.db.feedback[th.ID] = append([]thesis.FeedbackEntry(nil), th.Feedback...)
	return th, nil
}

func (repo *thesisRepository) GetThesisByID(_ context.Context, id string) (thesis.Thesis, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if th, ok := repo.get(id); ok {
		return th, nil
	}
	return thesis.Thesis{}, thesis.ErrNotFound
}

func (repo *thesisRepository) GetThesisByIDAndStudent(_ context.Context, id, studentEmail string) (thesis.Thesis, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if th, ok := repo.get(id); ok && th.StudentEmail == studentEmail {
		return th, nil
	}
	return thesis.Thesis{}, thesis.ErrNotFound
}

func (repo *thesisRepository) QueryAllTheses(_ context.Context) ([]thesis.Thesis, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(), nil
}

func (repo *thesisRepository) FilterTheses(_ context.Context, filter thesis.QueryFilter) ([]thesis.Thesis, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	matches := make([]thesis.Thesis, 0)
	for _, th := range repo.query() {
		if filter.StudentEmail != "" && th.StudentEmail != filter.StudentEmail {
			continue
		}
		if filter.AdviserEmail != "" && th.AdviserEmail != filter.AdviserEmail {
			continue
		}
		if filter.Status != "" && th.Status != filter.Status {
			continue
		}
		matches = append(matches, th)
	}
	return matches, nil
}

func (repo *thesisRepository) AddFeedback(_ context.Context, thesisID string, fb thesis.FeedbackEntry) (thesis.Thesis, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if fb.Comment == "" || fb.ReviewedBy == "" {
		return thesis.Thesis{}, thesis.ErrEmptyFeedback
	}

	th, ok := repo.db.table[thesisID]
	if !ok {
		return thesis.Thesis{}, thesis.ErrNotFound
	}

	repo.db.feedback[thesisID] = append(repo.db.feedback[thesisID], fb)
	th.Status = fb.Status
	th.ReviewComments = fb.Comment
	th.ReviewedBy = fb.ReviewedBy
	th.ReviewDate = fb.ReviewDate
	th.UpdatedAt = fb.ReviewDate

	updated, _ := repo.get(thesisID)
	return updated, nil
}

func (repo *thesisRepository) DeleteThesis(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return thesis.ErrNotFound
	}
	delete(repo.db.table, id)
	delete(repo.db.feedback, id)
	return nil
}
