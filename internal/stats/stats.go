// Package stats aggregates a user's focus activities into per-project
// reports over calendar windows.
package stats

import (
	"sort"
	"time"

	botErrors "github.com/focuslabs/focusbot/internal/errors"
	"github.com/focuslabs/focusbot/internal/store"
)

// Period selects the reporting window.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// Window returns the [from, to) interval the period covers at the given
// time. The day window is the current calendar day, the week starts on
// Monday, and the month starts on the 1st.
func (p Period) Window(now time.Time) (from, to time.Time, err error) {
	year, month, day := now.Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, now.Location())

	switch p {
	case PeriodDay:
		return midnight, midnight.AddDate(0, 0, 1), nil
	case PeriodWeek:
		offset := int(midnight.Weekday()) - int(time.Monday)
		if offset < 0 {
			offset += 7 // Sunday
		}
		start := midnight.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7), nil
	case PeriodMonth:
		start := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0), nil
	default:
		return time.Time{}, time.Time{}, botErrors.ErrValidation
	}
}

// ProjectReport holds aggregated activity figures for one project.
type ProjectReport struct {
	ProjectID     string
	ProjectName   string
	Finished      int
	Unfinished    int
	InProgress    int
	Total         int
	TotalDuration time.Duration
}

// Reporter builds per-project reports from the store.
type Reporter struct {
	store *store.Store
}

// NewReporter creates a Reporter.
func NewReporter(st *store.Store) *Reporter {
	return &Reporter{store: st}
}

// Report aggregates the user's focus activities started within the
// period at the given time, one entry per project, ordered by project
// name. An empty slice means nothing happened in the window.
func (r *Reporter) Report(userID string, p Period, now time.Time) ([]*ProjectReport, error) {
	from, to, err := p.Window(now)
	if err != nil {
		return nil, err
	}

	activities, err := r.store.ListActivities(store.ActivityFilter{
		UserID: userID,
		Kind:   store.ActivityFocus,
		From:   from,
		To:     to,
	})
	if err != nil {
		return nil, err
	}

	byProject := make(map[string]*ProjectReport)
	for _, a := range activities {
		rep, ok := byProject[a.ProjectID]
		if !ok {
			rep = &ProjectReport{ProjectID: a.ProjectID}
			if a.ProjectID != "" {
				proj, err := r.store.GetProject(a.ProjectID)
				if err == nil {
					rep.ProjectName = proj.Name
				}
			}
			byProject[a.ProjectID] = rep
		}

		switch a.Status {
		case store.ActivityFinished:
			rep.Finished++
		case store.ActivityUnfinished:
			rep.Unfinished++
		default:
			rep.InProgress++
		}
		rep.Total++
		rep.TotalDuration += a.RealDuration()
	}

	reports := make([]*ProjectReport, 0, len(byProject))
	for _, rep := range byProject {
		reports = append(reports, rep)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].ProjectName < reports[j].ProjectName
	})
	return reports, nil
}
