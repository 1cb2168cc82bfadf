package submission

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"rwa-lending-gateway/internal/domain/collateral"
	domain "rwa-lending-gateway/internal/domain/submission"
	"rwa-lending-gateway/internal/domain/uow"
	"rwa-lending-gateway/internal/infrastructure/logging"
	"rwa-lending-gateway/internal/testutil/chainmock"
	"rwa-lending-gateway/internal/testutil/submissionmock"
	"rwa-lending-gateway/internal/testutil/uowmock"
)

var fixedNow = time.Date(2025, 9, 6, 10, 0, 0, 0, time.UTC)

func newUsecase(repo *submissionmock.Repo, chain *chainmock.Chain) *Usecase {
	uc := NewUsecase(repo, uowmock.Passthrough(uow.Repos{Submissions: repo}), chain, logging.Discard())
	uc.now = func() time.Time { return fixedNow }
	return uc
}

func TestUsecase_Record(t *testing.T) {
	var created *domain.Submission
	repo := &submissionmock.Repo{
		CreateFn: func(ctx context.Context, s *domain.Submission) error {
			created = s
			return nil
		},
	}
	uc := newUsecase(repo, &chainmock.Chain{})
	m := collateral.Module{Address: "0x1", Name: "lending"}

	dto, err := uc.Record(context.Background(), "0xabc", "7", m.LockForCollateral("7"), "0xhash")
	if err != nil {
		t.Fatalf("Record err: %v", err)
	}
	if len(dto.SubmissionID) != 32 {
		t.Fatalf("submission id = %q", dto.SubmissionID)
	}
	if created.State != domain.StatePending || created.TxHash != "0xhash" || created.Function != "0x1::lending::lock_for_collateral" {
		t.Fatalf("unexpected row: %+v", created)
	}
	if created.Arguments != `["7"]` {
		t.Fatalf("arguments = %s", created.Arguments)
	}
	if len(dto.Arguments) != 1 || dto.Arguments[0] != "7" {
		t.Fatalf("dto arguments = %v", dto.Arguments)
	}
}

func TestUsecase_Record_RepoError(t *testing.T) {
	boom := errors.New("insert failed")
	repo := &submissionmock.Repo{
		CreateFn: func(ctx context.Context, s *domain.Submission) error { return boom },
	}
	uc := newUsecase(repo, &chainmock.Chain{})
	if _, err := uc.Record(context.Background(), "0xabc", "7", collateral.BuildPayload("f", nil, nil), "0xh"); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
}

func TestUsecase_Finalize(t *testing.T) {
	tests := []struct {
		name    string
		row     func() (*domain.Submission, error)
		success bool
		wantErr error
		want    domain.State
	}{
		{
			name:    "pending -> confirmed",
			row:     func() (*domain.Submission, error) { return &domain.Submission{State: domain.StatePending}, nil },
			success: true,
			want:    domain.StateConfirmed,
		},
		{
			name: "pending -> failed",
			row:  func() (*domain.Submission, error) { return &domain.Submission{State: domain.StatePending}, nil },
			want: domain.StateFailed,
		},
		{
			name:    "already settled",
			row:     func() (*domain.Submission, error) { return &domain.Submission{State: domain.StateConfirmed}, nil },
			success: true,
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name:    "unknown hash",
			row:     func() (*domain.Submission, error) { return nil, gorm.ErrRecordNotFound },
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var saved *domain.Submission
			repo := &submissionmock.Repo{
				GetByTxHashForUpdateFn: func(ctx context.Context, h string) (*domain.Submission, error) { return tc.row() },
				SaveFn: func(ctx context.Context, s *domain.Submission) error {
					saved = s
					return nil
				},
			}
			err := newUsecase(repo, &chainmock.Chain{}).Finalize(context.Background(), "0xh", tc.success, "Move abort")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				if saved != nil {
					t.Fatal("Save must not be called")
				}
				return
			}
			if err != nil {
				t.Fatalf("Finalize err: %v", err)
			}
			if saved.State != tc.want || saved.FinalizedAt == nil || !saved.FinalizedAt.Equal(fixedNow) {
				t.Fatalf("saved = %+v", saved)
			}
			if tc.want == domain.StateFailed && saved.Error != "Move abort" {
				t.Fatalf("error = %q", saved.Error)
			}
		})
	}
}

func TestUsecase_Get(t *testing.T) {
	repo := &submissionmock.Repo{
		GetBySubmissionIDFn: func(ctx context.Context, sid string) (*domain.Submission, error) {
			if sid == "missing" {
				return nil, gorm.ErrRecordNotFound
			}
			return &domain.Submission{SubmissionID: sid, State: domain.StatePending, Arguments: "not json"}, nil
		},
	}
	uc := newUsecase(repo, &chainmock.Chain{})

	if _, err := uc.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	dto, err := uc.Get(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if dto.State != "pending" || len(dto.Arguments) != 0 {
		t.Fatalf("dto = %+v", dto)
	}
}

func TestUsecase_ListByAccount(t *testing.T) {
	repo := &submissionmock.Repo{
		ListByAccountFn: func(ctx context.Context, account string, limit int) ([]domain.Submission, error) {
			if account != "0xabc" || limit != 5 {
				t.Fatalf("account=%s limit=%d", account, limit)
			}
			return []domain.Submission{
				{SubmissionID: "b", Arguments: `["7","100"]`},
				{SubmissionID: "a", Arguments: `["7"]`},
			}, nil
		},
	}
	out, err := newUsecase(repo, &chainmock.Chain{}).ListByAccount(context.Background(), "0xabc", 5)
	if err != nil {
		t.Fatalf("List err: %v", err)
	}
	if len(out) != 2 || out[0].SubmissionID != "b" || len(out[0].Arguments) != 2 {
		t.Fatalf("out = %+v", out)
	}
}

func TestUsecase_ReconcilePending(t *testing.T) {
	rows := []domain.Submission{
		{TxHash: "0xok", State: domain.StatePending},
		{TxHash: "0xbad", State: domain.StatePending},
		{TxHash: "0xunknown", State: domain.StatePending},
		{TxHash: "0xmempool", State: domain.StatePending},
		{TxHash: "0xflaky", State: domain.StatePending},
	}
	byHash := map[string]*domain.Submission{}
	for i := range rows {
		byHash[rows[i].TxHash] = &rows[i]
	}

	var before time.Time
	repo := &submissionmock.Repo{
		ListPendingFn: func(ctx context.Context, b time.Time, limit int) ([]domain.Submission, error) {
			before = b
			return rows, nil
		},
		GetByTxHashForUpdateFn: func(ctx context.Context, h string) (*domain.Submission, error) {
			return byHash[h], nil
		},
	}
	chain := &chainmock.Chain{
		GetTransactionFn: func(ctx context.Context, h string) (*collateral.Transaction, error) {
			switch h {
			case "0xok":
				return &collateral.Transaction{Hash: h, Success: true}, nil
			case "0xbad":
				return &collateral.Transaction{Hash: h, VMStatus: "Move abort: E_NOT_OWNER"}, nil
			case "0xmempool":
				return &collateral.Transaction{Hash: h, Pending: true}, nil
			case "0xflaky":
				return nil, errors.New("502 bad gateway")
			}
			return nil, collateral.ErrNotFound
		},
	}

	uc := newUsecase(repo, chain).WithGrace(time.Minute)
	rep, err := uc.ReconcilePending(context.Background())
	if err != nil {
		t.Fatalf("Reconcile err: %v", err)
	}
	if !before.Equal(fixedNow.Add(-time.Minute)) {
		t.Fatalf("before = %v", before)
	}
	if rep.Scanned != 5 || rep.Confirmed != 1 || rep.Failed != 1 || rep.Pending != 3 {
		t.Fatalf("report = %+v", rep)
	}
	if byHash["0xok"].State != domain.StateConfirmed {
		t.Fatalf("0xok state = %s", byHash["0xok"].State)
	}
	if byHash["0xbad"].State != domain.StateFailed || byHash["0xbad"].Error != "Move abort: E_NOT_OWNER" {
		t.Fatalf("0xbad = %+v", byHash["0xbad"])
	}
	if byHash["0xunknown"].State != domain.StatePending {
		t.Fatal("unknown hash must stay pending")
	}
}

func TestUsecase_ReconcilePending_ListError(t *testing.T) {
	boom := errors.New("db down")
	repo := &submissionmock.Repo{
		ListPendingFn: func(ctx context.Context, b time.Time, limit int) ([]domain.Submission, error) { return nil, boom },
	}
	if _, err := newUsecase(repo, &chainmock.Chain{}).ReconcilePending(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
}
