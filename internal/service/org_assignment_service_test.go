package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/internal/repository"
	appErrors "github.com/noah-isme/uni-admin-api/pkg/errors"
)

type fakeAssignmentRepo struct {
	items     map[models.ID]*models.OrgAssignment
	employees map[models.ID]string
	nextID    models.ID
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{items: map[models.ID]*models.OrgAssignment{}, employees: map[models.ID]string{7: "Jane Doe"}, nextID: 1}
}

func (f *fakeAssignmentRepo) List(ctx context.Context, filter models.AssignmentFilter) ([]models.OrgAssignment, int, error) {
	out := make([]models.OrgAssignment, 0)
	for _, a := range f.items {
		if filter.ActiveOn != nil && !models.ActiveOn(a.StartDate, a.EndDate, *filter.ActiveOn) {
			continue
		}
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (f *fakeAssignmentRepo) FindByID(ctx context.Context, id models.ID) (*models.OrgAssignment, error) {
	a, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *a
	copied.EmployeeName = f.employees[a.EmployeeID]
	return &copied, nil
}

func (f *fakeAssignmentRepo) Create(ctx context.Context, a *models.OrgAssignment) error {
	if _, ok := f.employees[a.EmployeeID]; !ok {
		return &repository.ConstraintError{Kind: repository.ConstraintForeignKey, Constraint: "org_assignments_employee_id_fkey", Field: "employee_id"}
	}
	a.ID = f.nextID
	f.nextID++
	copied := *a
	f.items[a.ID] = &copied
	return nil
}

func (f *fakeAssignmentRepo) Update(ctx context.Context, a *models.OrgAssignment) error {
	if _, ok := f.items[a.ID]; !ok {
		return repository.ErrNotFound
	}
	copied := *a
	f.items[a.ID] = &copied
	return nil
}

func (f *fakeAssignmentRepo) Delete(ctx context.Context, id models.ID) error {
	if _, ok := f.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func newAssignmentService(repo *fakeAssignmentRepo) *OrgAssignmentService {
	svc := NewOrgAssignmentService(repo, nil, nil, nil)
	svc.today = func() models.Date { return mustParseDate("2024-09-01") }
	return svc
}

func decPtr(raw string) *decimal.Decimal {
	d := decimal.RequireFromString(raw)
	return &d
}

func TestAssignmentCreateDefaultsAndReload(t *testing.T) {
	svc := newAssignmentService(newFakeAssignmentRepo())

	a, err := svc.Create(context.Background(), CreateAssignmentRequest{EmployeeID: 7, OrgUnitID: 3, AssignmentType: models.AssignmentAcademic}, models.AuditMeta{})
	require.NoError(t, err)
	assert.True(t, a.Allocation.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "2024-09-01", a.StartDate.String())
	assert.Equal(t, "Jane Doe", a.EmployeeName)
}

func TestAssignmentAllocationBounds(t *testing.T) {
	svc := newAssignmentService(newFakeAssignmentRepo())
	for _, raw := range []string{"0", "-5", "100.01"} {
		_, err := svc.Create(context.Background(), CreateAssignmentRequest{EmployeeID: 7, OrgUnitID: 3, AssignmentType: models.AssignmentAdmin, Allocation: decPtr(raw)}, models.AuditMeta{})
		assert.Equal(t, CodeAssignmentInvalidAllocation, appErrors.FromError(err).Code, raw)
	}

	a, err := svc.Create(context.Background(), CreateAssignmentRequest{EmployeeID: 7, OrgUnitID: 3, AssignmentType: models.AssignmentAdmin, Allocation: decPtr("37.5")}, models.AuditMeta{})
	require.NoError(t, err)
	assert.Equal(t, "37.5", a.Allocation.String())
}

func TestAssignmentAllocationScale(t *testing.T) {
	svc := newAssignmentService(newFakeAssignmentRepo())

	_, err := svc.Create(context.Background(), CreateAssignmentRequest{EmployeeID: 7, OrgUnitID: 3, AssignmentType: models.AssignmentAdmin, Allocation: decPtr("33.333")}, models.AuditMeta{})
	require.Error(t, err)
	assert.Equal(t, CodeAssignmentInvalidAllocation, appErrors.FromError(err).Code)
	assert.Contains(t, err.Error(), "2 decimal places")

	a, err := svc.Create(context.Background(), CreateAssignmentRequest{EmployeeID: 7, OrgUnitID: 3, AssignmentType: models.AssignmentAdmin, Allocation: decPtr("33.330")}, models.AuditMeta{})
	require.NoError(t, err)
	assert.True(t, a.Allocation.Equal(decimal.RequireFromString("33.33")))

	_, err = svc.Update(context.Background(), a.ID, UpdateAssignmentRequest{Allocation: decPtr("12.005")}, models.AuditMeta{})
	assert.Equal(t, CodeAssignmentInvalidAllocation, appErrors.FromError(err).Code)
}

func TestAssignmentValidationAndForeignKeys(t *testing.T) {
	svc := newAssignmentService(newFakeAssignmentRepo())

	_, err := svc.Create(context.Background(), CreateAssignmentRequest{EmployeeID: 7, OrgUnitID: 3, AssignmentType: "teaching"}, models.AuditMeta{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), CreateAssignmentRequest{EmployeeID: 7, OrgUnitID: 3, AssignmentType: models.AssignmentSupport, StartDate: datePtr("2024-05-01"), EndDate: datePtr("2024-04-01")}, models.AuditMeta{})
	assert.Equal(t, CodeAssignmentInvalidWindow, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), CreateAssignmentRequest{EmployeeID: 8, OrgUnitID: 3, AssignmentType: models.AssignmentSupport}, models.AuditMeta{})
	appErr := appErrors.FromError(err)
	assert.Equal(t, CodeAssignmentEmployeeNotFound, appErr.Code)
	assert.Equal(t, "Employee not found", appErr.Message)
}

func TestAssignmentMultiplePrimariesAllowed(t *testing.T) {
	svc := newAssignmentService(newFakeAssignmentRepo())
	for _, unit := range []models.ID{3, 4} {
		_, err := svc.Create(context.Background(), CreateAssignmentRequest{EmployeeID: 7, OrgUnitID: unit, AssignmentType: models.AssignmentAcademic, IsPrimary: true, Allocation: decPtr("50")}, models.AuditMeta{})
		require.NoError(t, err)
	}
	items, page, err := svc.List(context.Background(), models.AssignmentFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, page.Total)
}

func TestAssignmentUpdateAndDelete(t *testing.T) {
	svc := newAssignmentService(newFakeAssignmentRepo())
	a, err := svc.Create(context.Background(), CreateAssignmentRequest{EmployeeID: 7, OrgUnitID: 3, AssignmentType: models.AssignmentAcademic}, models.AuditMeta{})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), a.ID, UpdateAssignmentRequest{Allocation: decPtr("60"), EndDate: datePtr("2025-08-31")}, models.AuditMeta{})
	require.NoError(t, err)
	assert.Equal(t, "60", updated.Allocation.String())
	assert.Equal(t, "2025-08-31", updated.EndDate.String())

	require.NoError(t, svc.Delete(context.Background(), a.ID, models.AuditMeta{}))
	err = svc.Delete(context.Background(), a.ID, models.AuditMeta{})
	assert.Equal(t, CodeAssignmentNotFound, appErrors.FromError(err).Code)
}
