package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util"
)

type assignmentFixture struct {
	users       *fakeUserRepo
	requests    *fakeRequestRepo
	assignments *fakeAssignmentRepo
	dispatcher  *recordingDispatcher
	service     *AssignmentService
}

func newAssignmentFixture() *assignmentFixture {
	users := newFakeUserRepo()
	requests := newFakeRequestRepo()
	assignments := newFakeAssignmentRepo()
	dispatcher := &recordingDispatcher{}
	svc := NewAssignmentService(AssignmentDependencies{
		RequestRepo:    requests,
		AssignmentRepo: assignments,
		UserRepo:       users,
		Availability:   NewAvailabilityService(assignments),
		Tx:             fakeTxRunner{},
		Dispatcher:     dispatcher,
	})
	return &assignmentFixture{
		users:       users,
		requests:    requests,
		assignments: assignments,
		dispatcher:  dispatcher,
		service:     svc,
	}
}

func TestCreateAssignmentBindsTechnicianAndRequest(t *testing.T) {
	fx := newAssignmentFixture()
	ctx := context.Background()

	technician := fx.users.addTechnician("Ada", "hardware repair")
	customer := fx.users.addCustomer("Cleo")
	request := fx.requests.addPending(customer.ID, nil)

	assignment, err := fx.service.Create(ctx, CreateAssignmentInput{
		ServiceRequestID: request.ID,
		TechnicianID:     technician.ID,
		Notes:            "first visit",
	})
	require.NoError(t, err)
	require.NotEmpty(t, assignment.ID)
	assert.Equal(t, domain.AssignmentStatusAssigned, assignment.Status)
	assert.Equal(t, technician.ID, assignment.TechnicianID)
	assert.False(t, assignment.AssignedDate.IsZero())

	updated, err := fx.requests.GetByID(ctx, request.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedTechnicianID)
	assert.Equal(t, technician.ID, *updated.AssignedTechnicianID)
	require.NotNil(t, updated.CurrentAssignmentID)
	assert.Equal(t, assignment.ID, *updated.CurrentAssignmentID)
	assert.Equal(t, domain.RequestStatusInProgress, updated.Status)

	created := fx.dispatcher.eventsOfType(events.EventAssignmentCreated)
	require.Len(t, created, 1)
	assert.Equal(t, request.ID, created[0].RequestID)
}

func TestCreateAssignmentChecksAvailabilityUnderLock(t *testing.T) {
	fx := newAssignmentFixture()
	ctx := context.Background()

	technician := fx.users.addTechnician("Ada")
	customer := fx.users.addCustomer("Cleo")
	day := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < domain.TechnicianDailyCapacity; i++ {
		request := fx.requests.addPending(customer.ID, &day)
		_, err := fx.service.Create(ctx, CreateAssignmentInput{
			ServiceRequestID: request.ID,
			TechnicianID:     technician.ID,
			ScheduledDate:    &day,
		})
		require.NoError(t, err, "assignment %d should fit under capacity", i+1)
	}

	request := fx.requests.addPending(customer.ID, &day)
	_, err := fx.service.Create(ctx, CreateAssignmentInput{
		ServiceRequestID: request.ID,
		TechnicianID:     technician.ID,
		ScheduledDate:    &day,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsBusinessRule(err))
	assert.NotEmpty(t, fx.assignments.lockCalls)
}

func TestCreateAssignmentRejectsInactiveTechnician(t *testing.T) {
	fx := newAssignmentFixture()
	ctx := context.Background()

	technician := fx.users.addTechnician("Ada")
	technician.Active = false
	require.NoError(t, fx.users.Update(ctx, &technician))
	customer := fx.users.addCustomer("Cleo")
	request := fx.requests.addPending(customer.ID, nil)

	_, err := fx.service.Create(ctx, CreateAssignmentInput{
		ServiceRequestID: request.ID,
		TechnicianID:     technician.ID,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsBusinessRule(err))
}

func TestCreateAssignmentRejectsClosedRequest(t *testing.T) {
	fx := newAssignmentFixture()
	ctx := context.Background()

	technician := fx.users.addTechnician("Ada")
	customer := fx.users.addCustomer("Cleo")
	request := fx.requests.addPending(customer.ID, nil)
	request.Status = domain.RequestStatusCancelled
	require.NoError(t, fx.requests.Update(ctx, &request))

	_, err := fx.service.Create(ctx, CreateAssignmentInput{
		ServiceRequestID: request.ID,
		TechnicianID:     technician.ID,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsBusinessRule(err))
}

func TestCreateAssignmentUnknownCollaborators(t *testing.T) {
	fx := newAssignmentFixture()
	ctx := context.Background()

	customer := fx.users.addCustomer("Cleo")
	request := fx.requests.addPending(customer.ID, nil)

	_, err := fx.service.Create(ctx, CreateAssignmentInput{ServiceRequestID: request.ID, TechnicianID: "nope"})
	assert.True(t, apperrors.IsNotFound(err))

	// a customer id is not a technician id
	_, err = fx.service.Create(ctx, CreateAssignmentInput{ServiceRequestID: request.ID, TechnicianID: customer.ID})
	assert.True(t, apperrors.IsNotFound(err))

	technician := fx.users.addTechnician("Ada")
	_, err = fx.service.Create(ctx, CreateAssignmentInput{ServiceRequestID: "missing", TechnicianID: technician.ID})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStartOnlyFromAssigned(t *testing.T) {
	fx := newAssignmentFixture()
	ctx := context.Background()

	technician := fx.users.addTechnician("Ada")
	customer := fx.users.addCustomer("Cleo")
	request := fx.requests.addPending(customer.ID, nil)

	assignment, err := fx.service.Create(ctx, CreateAssignmentInput{
		ServiceRequestID: request.ID,
		TechnicianID:     technician.ID,
	})
	require.NoError(t, err)

	started, err := fx.service.Start(ctx, assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentStatusInProgress, started.Status)
	require.NotNil(t, started.StartedDate)

	_, err = fx.service.Start(ctx, assignment.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsBusinessRule(err))
}

func TestCompleteFinishesAssignmentAndRequest(t *testing.T) {
	fx := newAssignmentFixture()
	ctx := context.Background()

	technician := fx.users.addTechnician("Ada")
	customer := fx.users.addCustomer("Cleo")
	request := fx.requests.addPending(customer.ID, nil)

	assignment, err := fx.service.Create(ctx, CreateAssignmentInput{
		ServiceRequestID: request.ID,
		TechnicianID:     technician.ID,
	})
	require.NoError(t, err)
	_, err = fx.service.Start(ctx, assignment.ID)
	require.NoError(t, err)

	hours := 2.5
	completed, err := fx.service.Complete(ctx, assignment.ID, "replaced the power supply", &hours)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedDate)
	assert.Equal(t, "replaced the power supply", completed.CompletionNotes)

	updated, err := fx.requests.GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedDate)
	assert.Nil(t, updated.CurrentAssignmentID)

	require.Len(t, fx.dispatcher.eventsOfType(events.EventAssignmentCompleted), 1)
	require.Len(t, fx.dispatcher.eventsOfType(events.EventRequestCompleted), 1)

	_, err = fx.service.Complete(ctx, assignment.ID, "", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsBusinessRule(err))
}

func TestCompleteDirectlyFromAssigned(t *testing.T) {
	fx := newAssignmentFixture()
	ctx := context.Background()

	technician := fx.users.addTechnician("Ada")
	customer := fx.users.addCustomer("Cleo")
	request := fx.requests.addPending(customer.ID, nil)

	assignment, err := fx.service.Create(ctx, CreateAssignmentInput{
		ServiceRequestID: request.ID,
		TechnicianID:     technician.ID,
	})
	require.NoError(t, err)

	completed, err := fx.service.Complete(ctx, assignment.ID, "", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentStatusCompleted, completed.Status)
}

func TestCancelRevertsLoneAssignmentRequestToPending(t *testing.T) {
	fx := newAssignmentFixture()
	ctx := context.Background()

	technician := fx.users.addTechnician("Ada")
	customer := fx.users.addCustomer("Cleo")
	request := fx.requests.addPending(customer.ID, nil)

	assignment, err := fx.service.Create(ctx, CreateAssignmentInput{
		ServiceRequestID: request.ID,
		TechnicianID:     technician.ID,
	})
	require.NoError(t, err)

	cancelled, err := fx.service.Cancel(ctx, assignment.ID, "customer rescheduled")
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentStatusCancelled, cancelled.Status)
	assert.Contains(t, cancelled.Notes, "cancelled: customer rescheduled")

	updated, err := fx.requests.GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, updated.Status)
	assert.Nil(t, updated.AssignedTechnicianID)
	assert.Nil(t, updated.CurrentAssignmentID)
}

func TestCancelCompletedAssignmentFails(t *testing.T) {
	fx := newAssignmentFixture()
	ctx := context.Background()

	technician := fx.users.addTechnician("Ada")
	customer := fx.users.addCustomer("Cleo")
	request := fx.requests.addPending(customer.ID, nil)

	assignment, err := fx.service.Create(ctx, CreateAssignmentInput{
		ServiceRequestID: request.ID,
		TechnicianID:     technician.ID,
	})
	require.NoError(t, err)
	_, err = fx.service.Complete(ctx, assignment.ID, "", nil)
	require.NoError(t, err)

	_, err = fx.service.Cancel(ctx, assignment.ID, "too late")
	require.Error(t, err)
	assert.True(t, apperrors.IsBusinessRule(err))
}

func TestRequestStaysCompletedWhenAnyAssignmentCompleted(t *testing.T) {
	fx := newAssignmentFixture()
	ctx := context.Background()

	first := fx.users.addTechnician("Ada")
	second := fx.users.addTechnician("Grace")
	customer := fx.users.addCustomer("Cleo")
	request := fx.requests.addPending(customer.ID, nil)

	a1, err := fx.service.Create(ctx, CreateAssignmentInput{ServiceRequestID: request.ID, TechnicianID: first.ID})
	require.NoError(t, err)
	a2, err := fx.service.Create(ctx, CreateAssignmentInput{ServiceRequestID: request.ID, TechnicianID: second.ID})
	require.NoError(t, err)

	_, err = fx.service.Complete(ctx, a1.ID, "", nil)
	require.NoError(t, err)

	// one assignment still open: request stays in progress
	mid, err := fx.requests.GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusInProgress, mid.Status)

	_, err = fx.service.Cancel(ctx, a2.ID, "duplicate")
	require.NoError(t, err)

	final, err := fx.requests.GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusCompleted, final.Status)

	// the completion event carries the timestamp stored on the request
	completed := fx.dispatcher.eventsOfType(events.EventRequestCompleted)
	require.Len(t, completed, 1)
	payload, ok := completed[0].Payload.(events.RequestCompletedPayload)
	require.True(t, ok)
	require.NotNil(t, final.CompletedDate)
	assert.True(t, payload.CompletedDate.Equal(*final.CompletedDate))
}

func TestReassignLinksReplacementToOriginal(t *testing.T) {
	fx := newAssignmentFixture()
	ctx := context.Background()

	first := fx.users.addTechnician("Ada")
	second := fx.users.addTechnician("Grace")
	customer := fx.users.addCustomer("Cleo")
	day := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)
	request := fx.requests.addPending(customer.ID, &day)

	hours := 3.0
	original, err := fx.service.Create(ctx, CreateAssignmentInput{
		ServiceRequestID: request.ID,
		TechnicianID:     first.ID,
		ScheduledDate:    &day,
		EstimatedHours:   &hours,
	})
	require.NoError(t, err)

	replacement, err := fx.service.Reassign(ctx, original.ID, second.ID, "specialist needed")
	require.NoError(t, err)
	assert.Equal(t, second.ID, replacement.TechnicianID)
	assert.Equal(t, domain.AssignmentStatusAssigned, replacement.Status)
	assert.Contains(t, replacement.Notes, "reassigned from "+original.ID)
	require.NotNil(t, replacement.ScheduledDate)
	assert.True(t, replacement.ScheduledDate.Equal(day))
	require.NotNil(t, replacement.EstimatedHours)
	assert.Equal(t, hours, *replacement.EstimatedHours)

	old, err := fx.service.GetAssignment(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentStatusCancelled, old.Status)
	assert.Contains(t, old.Notes, "reassignment: specialist needed")

	updated, err := fx.requests.GetByID(ctx, request.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedTechnicianID)
	assert.Equal(t, second.ID, *updated.AssignedTechnicianID)
	require.NotNil(t, updated.CurrentAssignmentID)
	assert.Equal(t, replacement.ID, *updated.CurrentAssignmentID)
	assert.Equal(t, domain.RequestStatusInProgress, updated.Status)

	cancelledEvents := fx.dispatcher.eventsOfType(events.EventAssignmentCancelled)
	require.Len(t, cancelledEvents, 1)
	payload, ok := cancelledEvents[0].Payload.(events.AssignmentCancelledPayload)
	require.True(t, ok)
	assert.True(t, payload.Reassigned)
}

func TestReassignTerminalAssignmentFails(t *testing.T) {
	fx := newAssignmentFixture()
	ctx := context.Background()

	first := fx.users.addTechnician("Ada")
	second := fx.users.addTechnician("Grace")
	customer := fx.users.addCustomer("Cleo")
	request := fx.requests.addPending(customer.ID, nil)

	assignment, err := fx.service.Create(ctx, CreateAssignmentInput{ServiceRequestID: request.ID, TechnicianID: first.ID})
	require.NoError(t, err)
	_, err = fx.service.Complete(ctx, assignment.ID, "", nil)
	require.NoError(t, err)

	_, err = fx.service.Reassign(ctx, assignment.ID, second.ID, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsBusinessRule(err))
}

func TestReassignChecksNewTechnicianAvailability(t *testing.T) {
	fx := newAssignmentFixture()
	ctx := context.Background()

	first := fx.users.addTechnician("Ada")
	second := fx.users.addTechnician("Grace")
	customer := fx.users.addCustomer("Cleo")
	day := time.Date(2026, 9, 3, 8, 0, 0, 0, time.UTC)

	for i := 0; i < domain.TechnicianDailyCapacity; i++ {
		request := fx.requests.addPending(customer.ID, &day)
		_, err := fx.service.Create(ctx, CreateAssignmentInput{
			ServiceRequestID: request.ID,
			TechnicianID:     second.ID,
			ScheduledDate:    &day,
		})
		require.NoError(t, err)
	}

	request := fx.requests.addPending(customer.ID, &day)
	assignment, err := fx.service.Create(ctx, CreateAssignmentInput{
		ServiceRequestID: request.ID,
		TechnicianID:     first.ID,
		ScheduledDate:    &day,
	})
	require.NoError(t, err)

	_, err = fx.service.Reassign(ctx, assignment.ID, second.ID, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsBusinessRule(err))
}

func TestDeleteOnlyTerminalAssignments(t *testing.T) {
	fx := newAssignmentFixture()
	ctx := context.Background()

	technician := fx.users.addTechnician("Ada")
	customer := fx.users.addCustomer("Cleo")
	request := fx.requests.addPending(customer.ID, nil)

	assignment, err := fx.service.Create(ctx, CreateAssignmentInput{ServiceRequestID: request.ID, TechnicianID: technician.ID})
	require.NoError(t, err)

	err = fx.service.Delete(ctx, assignment.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsBusinessRule(err))

	_, err = fx.service.Cancel(ctx, assignment.ID, "")
	require.NoError(t, err)
	require.NoError(t, fx.service.Delete(ctx, assignment.ID))

	_, err = fx.service.GetAssignment(ctx, assignment.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListByRequestReturnsHistory(t *testing.T) {
	fx := newAssignmentFixture()
	ctx := context.Background()

	first := fx.users.addTechnician("Ada")
	second := fx.users.addTechnician("Grace")
	customer := fx.users.addCustomer("Cleo")
	request := fx.requests.addPending(customer.ID, nil)

	original, err := fx.service.Create(ctx, CreateAssignmentInput{ServiceRequestID: request.ID, TechnicianID: first.ID})
	require.NoError(t, err)
	_, err = fx.service.Reassign(ctx, original.ID, second.ID, "")
	require.NoError(t, err)

	history, err := fx.service.ListByRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = fx.service.ListByRequest(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}
