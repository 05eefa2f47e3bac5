package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/lending/internal/errs"
	"github.com/Astemirdum/lending-service/lending/internal/handler"
	mock_handler "github.com/Astemirdum/lending-service/lending/internal/handler/mocks"
	"github.com/Astemirdum/lending-service/lending/internal/model"
	"github.com/Astemirdum/lending-service/pkg/auth"
)

func newRequest(method, target, body, userID, role string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(auth.XUserIDHeader, userID)
	}
	if role != "" {
		req.Header.Set(auth.XUserRoleHeader, role)
	}
	return req
}

func serve(t *testing.T, svc handler.LendingService, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	h := handler.New(svc, zap.NewNop())
	rec := httptest.NewRecorder()
	h.NewRouter().ServeHTTP(rec, req)
	return rec
}

func TestHandler_Health(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	rec := serve(t, mock_handler.NewMockLendingService(ctrl), httptest.NewRequest(http.MethodGet, "/manage/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func TestHandler_Borrow(t *testing.T) {
	t.Parallel()
	due := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		body       string
		userID     string
		mockFn     func(m *mock_handler.MockLendingService)
		wantStatus int
		wantBody   string
	}{
		{
			name:   "created",
			body:   `{"book_id": 10}`,
			userID: "1",
			mockFn: func(m *mock_handler.MockLendingService) {
				m.EXPECT().Borrow(gomock.Any(), int64(1), int64(10)).
					Return(model.BorrowView{ID: 5, User: 1, Book: 10, BookTitle: "Dune", DueDate: due}, nil)
			},
			wantStatus: http.StatusCreated,
			wantBody:   `"book_title":"Dune"`,
		},
		{
			name:       "no identity",
			body:       `{"book_id": 10}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "bad identity",
			body:       `{"book_id": 10}`,
			userID:     "abc",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing book id",
			body:       `{}`,
			userID:     "1",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{"book_id": "x"`,
			userID:     "1",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "out of stock",
			body:   `{"book_id": 10}`,
			userID: "1",
			mockFn: func(m *mock_handler.MockLendingService) {
				m.EXPECT().Borrow(gomock.Any(), int64(1), int64(10)).Return(model.BorrowView{}, errs.ErrOutOfStock)
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   errs.ErrOutOfStock.Error(),
		},
		{
			name:   "limit exceeded",
			body:   `{"book_id": 10}`,
			userID: "1",
			mockFn: func(m *mock_handler.MockLendingService) {
				m.EXPECT().Borrow(gomock.Any(), int64(1), int64(10)).
					Return(model.BorrowView{}, errors.Wrap(errs.ErrLimitExceeded, "limit 3"))
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "unknown book",
			body:   `{"book_id": 10}`,
			userID: "1",
			mockFn: func(m *mock_handler.MockLendingService) {
				m.EXPECT().Borrow(gomock.Any(), int64(1), int64(10)).Return(model.BorrowView{}, errs.NotFound("book"))
			},
			wantStatus: http.StatusNotFound,
			wantBody:   "book not found",
		},
		{
			name:   "busy",
			body:   `{"book_id": 10}`,
			userID: "1",
			mockFn: func(m *mock_handler.MockLendingService) {
				m.EXPECT().Borrow(gomock.Any(), int64(1), int64(10)).Return(model.BorrowView{}, errs.ErrBusy)
			},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:   "internal",
			body:   `{"book_id": 10}`,
			userID: "1",
			mockFn: func(m *mock_handler.MockLendingService) {
				m.EXPECT().Borrow(gomock.Any(), int64(1), int64(10)).Return(model.BorrowView{}, errors.New("connection reset"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			svc := mock_handler.NewMockLendingService(ctrl)
			if tt.mockFn != nil {
				tt.mockFn(svc)
			}

			rec := serve(t, svc, newRequest(http.MethodPost, "/api/v1/borrow", tt.body, tt.userID, ""))
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantBody != "" {
				require.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHandler_Return(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		mockFn     func(m *mock_handler.MockLendingService)
		wantStatus int
		wantBody   string
	}{
		{
			name: "returned",
			body: `{"borrow_id": 5}`,
			mockFn: func(m *mock_handler.MockLendingService) {
				m.EXPECT().Return(gomock.Any(), int64(2), int64(5)).Return(model.ReturnResult{
					Message:            "Book returned successfully",
					PenaltyPointsAdded: 5,
					TotalPenaltyPoints: 8,
				}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `"penalty_points_added":5`,
		},
		{
			name: "already returned",
			body: `{"borrow_id": 5}`,
			mockFn: func(m *mock_handler.MockLendingService) {
				m.EXPECT().Return(gomock.Any(), int64(2), int64(5)).Return(model.ReturnResult{}, errs.ErrAlreadyReturned)
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   "book already returned",
		},
		{
			name: "not owner",
			body: `{"borrow_id": 5}`,
			mockFn: func(m *mock_handler.MockLendingService) {
				m.EXPECT().Return(gomock.Any(), int64(2), int64(5)).
					Return(model.ReturnResult{}, errors.Wrap(errs.ErrForbidden, "you can only return your own books"))
			},
			wantStatus: http.StatusForbidden,
			wantBody:   "you can only return your own books",
		},
		{
			name:       "negative id",
			body:       `{"borrow_id": -1}`,
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			svc := mock_handler.NewMockLendingService(ctrl)
			if tt.mockFn != nil {
				tt.mockFn(svc)
			}

			rec := serve(t, svc, newRequest(http.MethodPost, "/api/v1/return", tt.body, "2", ""))
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantBody != "" {
				require.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHandler_MyBorrows(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	svc := mock_handler.NewMockLendingService(ctrl)
	svc.EXPECT().ListActiveBorrows(gomock.Any(), int64(3)).DoAndReturn(
		func(ctx context.Context, userID int64) ([]model.BorrowView, error) {
			require.Equal(t, auth.RoleUser, auth.GetRole(ctx))
			return []model.BorrowView{{ID: 1, User: 3, IsOverdue: true, DaysOverdue: 2}}, nil
		})

	rec := serve(t, svc, newRequest(http.MethodGet, "/api/v1/my-borrows", "", "3", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"days_overdue":2`)
	require.Contains(t, rec.Body.String(), `"is_overdue":true`)
}

func TestHandler_GetPenalties(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		target     string
		role       string
		mockFn     func(m *mock_handler.MockLendingService)
		wantStatus int
	}{
		{
			name:   "own",
			target: "/api/v1/users/4/penalties",
			mockFn: func(m *mock_handler.MockLendingService) {
				m.EXPECT().GetPenalties(gomock.Any(), int64(4), false, int64(4)).
					Return(model.PenaltyView{ID: 4, Username: "dave", PenaltyPoints: 3}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "admin",
			target: "/api/v1/users/9/penalties",
			role:   auth.RoleAdmin,
			mockFn: func(m *mock_handler.MockLendingService) {
				m.EXPECT().GetPenalties(gomock.Any(), int64(4), true, int64(9)).
					Return(model.PenaltyView{ID: 9}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "forbidden",
			target: "/api/v1/users/9/penalties",
			mockFn: func(m *mock_handler.MockLendingService) {
				m.EXPECT().GetPenalties(gomock.Any(), int64(4), false, int64(9)).
					Return(model.PenaltyView{}, errs.ErrForbidden)
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "bad id",
			target:     "/api/v1/users/abc/penalties",
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			svc := mock_handler.NewMockLendingService(ctrl)
			if tt.mockFn != nil {
				tt.mockFn(svc)
			}

			rec := serve(t, svc, newRequest(http.MethodGet, tt.target, "", "4", tt.role))
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}
