// Package projections serves read-only views computed from the ledger.
package projections

import (
	"context"
	"errors"

	"github.com/angelmondragon/tamwill-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tamwill-backend/pkg/errors"
	"github.com/angelmondragon/tamwill-backend/pkg/money"
	"github.com/angelmondragon/tamwill-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	recentLimit = 5
	dayLayout   = "2006-01-02"
)

type projectLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListPayoutQueue(ctx context.Context, limit int) ([]models.Project, error)
}

type userLookup interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error)
}

type ServiceParams struct {
	Repository *Repository
	Projects   projectLookup
	Users      userLookup
}

type Service struct {
	repo     *Repository
	projects projectLookup
	users    userLookup
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "projection repo required")
	}
	if params.Projects == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "project repo required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repo required")
	}
	return &Service{repo: params.Repository, projects: params.Projects, users: params.Users}, nil
}

// Dashboard builds the creator's funding summary for one of their projects.
func (s *Service) Dashboard(ctx context.Context, projectID, requesterID uuid.UUID) (*Dashboard, error) {
	project, err := s.ownedProject(ctx, projectID, requesterID)
	if err != nil {
		return nil, err
	}
	paid, err := s.repo.ListPaidByProject(ctx, projectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list paid contributions")
	}

	series := make([]SeriesPoint, 0)
	var running money.Amount
	for _, c := range paid {
		running = running.Add(c.Amount)
		day := c.CreatedAt.UTC().Format(dayLayout)
		if n := len(series); n > 0 && series[n-1].Day == day {
			series[n-1].Cumulative = running
			continue
		}
		series = append(series, SeriesPoint{Day: day, Cumulative: running})
	}

	start := len(paid) - recentLimit
	if start < 0 {
		start = 0
	}
	recentRows := make([]models.Contribution, 0, recentLimit)
	for i := len(paid) - 1; i >= start; i-- {
		recentRows = append(recentRows, paid[i])
	}
	recent, err := s.views(ctx, recentRows)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		ProjectID:    project.ID,
		Title:        project.Title,
		Goal:         project.GoalAmount,
		Collected:    project.CollectedAmount,
		PayoutStatus: project.PayoutStatus,
		BackerCount:  len(paid),
		Series:       series,
		Recent:       recent,
	}, nil
}

// Transactions pages through every contribution of a creator's project.
func (s *Service) Transactions(ctx context.Context, projectID, requesterID uuid.UUID, params pagination.Params) (*pagination.Page[ContributionView], error) {
	if _, err := s.ownedProject(ctx, projectID, requesterID); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByProject(ctx, projectID, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list contributions")
	}
	views, err := s.views(ctx, rows)
	if err != nil {
		return nil, err
	}
	page := pagination.Build(views, params.Limit, func(v ContributionView) pagination.Cursor {
		return pagination.Cursor{CreatedAt: v.CreatedAt, ID: v.ID}
	})
	return &page, nil
}

// Leaderboard ranks backers by paid total. Backers whose every contribution
// was anonymous are masked. Equal totals share a rank.
func (s *Service) Leaderboard(ctx context.Context, projectID *uuid.UUID, limit int) ([]LeaderboardEntry, error) {
	if projectID != nil {
		if _, err := s.findProject(ctx, *projectID); err != nil {
			return nil, err
		}
	}
	rows, err := s.repo.Leaderboard(ctx, projectID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rank backers")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID)
	}
	names, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load backers")
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		rank := i + 1
		if i > 0 && row.TotalCents == rows[i-1].TotalCents {
			rank = entries[i-1].Rank
		}
		entry := LeaderboardEntry{
			Rank:          rank,
			Name:          AnonymousName,
			Total:         money.FromCents(row.TotalCents),
			Contributions: row.Contributions,
		}
		if row.AllAnonymous == 0 {
			id := row.UserID
			entry.UserID = &id
			entry.Name = names[row.UserID].Name
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// History pages through the caller's own paid contributions.
func (s *Service) History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*pagination.Page[HistoryEntry], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.History(ctx, userID, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list donation history")
	}
	entries := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, HistoryEntry{
			ContributionID: row.ID,
			ProjectID:      row.ProjectID,
			ProjectTitle:   row.ProjectTitle,
			Amount:         money.FromCents(row.AmountCents),
			Anonymous:      row.Anonymous,
			CreatedAt:      row.CreatedAt,
		})
	}
	page := pagination.Build(entries, params.Limit, func(e HistoryEntry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ContributionID}
	})
	return &page, nil
}

// PayoutQueue lists projects whose payout is still open, newest request first.
func (s *Service) PayoutQueue(ctx context.Context, limit int) ([]PayoutQueueItem, error) {
	rows, err := s.projects.ListPayoutQueue(ctx, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payout queue")
	}
	items := make([]PayoutQueueItem, 0, len(rows))
	for _, p := range rows {
		items = append(items, PayoutQueueItem{
			ProjectID:         p.ID,
			Title:             p.Title,
			CreatorID:         p.CreatorID,
			Collected:         p.CollectedAmount,
			Goal:              p.GoalAmount,
			PayoutStatus:      p.PayoutStatus,
			PayoutDestination: p.PayoutDestination,
			RequestedAt:       p.PayoutRequestedAt,
		})
	}
	return items, nil
}

func (s *Service) ownedProject(ctx context.Context, projectID, requesterID uuid.UUID) (*models.Project, error) {
	project, err := s.findProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.CreatorID != requesterID {
		return nil, pkgerrors.Newf(pkgerrors.ReasonNotOwner, "user %s does not own project %s", requesterID, projectID)
	}
	return project, nil
}

func (s *Service) findProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.ReasonNotFound, "project %s not found", projectID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project")
	}
	return project, nil
}

func (s *Service) views(ctx context.Context, rows []models.Contribution) ([]ContributionView, error) {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, c := range rows {
		if !c.Anonymous {
			ids = append(ids, c.UserID)
		}
	}
	names, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load backers")
	}
	views := make([]ContributionView, 0, len(rows))
	for _, c := range rows {
		view := ContributionView{
			ID:         c.ID,
			BackerName: AnonymousName,
			Amount:     c.Amount,
			Anonymous:  c.Anonymous,
			Status:     c.Status,
			CreatedAt:  c.CreatedAt,
		}
		if !c.Anonymous {
			id := c.UserID
			view.BackerID = &id
			view.BackerName = names[c.UserID].Name
		}
		views = append(views, view)
	}
	return views, nil
}
