// ABOUTME: Tests for the approval workflow core using stub collaborators
// ABOUTME: Covers skip paths, publish failure, at-most-once commit, and decision dispatch

package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadmachine/prospector/internal/dedupe"
	"github.com/leadmachine/prospector/internal/directory"
	"github.com/leadmachine/prospector/internal/draft"
	"github.com/leadmachine/prospector/internal/notify"
	"github.com/leadmachine/prospector/internal/signal"
	"github.com/leadmachine/prospector/internal/store"
)

type stubDirectory struct {
	mu       sync.Mutex
	contacts []directory.Contact
	err      error
	calls    int
}

func (d *stubDirectory) SearchPeople(ctx context.Context, domain string, titles []string, page, perPage int) ([]directory.Contact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.contacts, d.err
}

type stubCRM struct {
	mu          sync.Mutex
	contactID   string
	createErr   error
	enrollErr   error
	createCalls int
	enrollCalls int
	lastParams  directory.CreateContactParams
}

func (c *stubCRM) CreateContact(ctx context.Context, params directory.CreateContactParams) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createCalls++
	c.lastParams = params
	return c.contactID, c.createErr
}

func (c *stubCRM) AddToSequence(ctx context.Context, contactID, sequenceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enrollCalls++
	return c.enrollErr
}

type stubGenerator struct {
	d   draft.Draft
	err error
}

func (g *stubGenerator) Generate(ctx context.Context, payload signal.Payload, contact directory.Contact) (draft.Draft, error) {
	return g.d, g.err
}

type stubNotifier struct {
	mu            sync.Mutex
	ts            string
	postErr       error
	approvedCalls int
	skippedCalls  int
}

func (n *stubNotifier) PostApprovalCard(ctx context.Context, req *store.ApprovalRequest) (string, error) {
	return n.ts, n.postErr
}

func (n *stubNotifier) UpdateCardApproved(ctx context.Context, channel, ts string, req *store.ApprovalRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approvedCalls++
	return nil
}

func (n *stubNotifier) UpdateCardSkipped(ctx context.Context, channel, ts string, req *store.ApprovalRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.skippedCalls++
	return nil
}

type testEnv struct {
	workflow  *Workflow
	store     store.Store
	directory *stubDirectory
	crm       *stubCRM
	generator *stubGenerator
	notifier  *stubNotifier
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:", 0)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	env := &testEnv{
		store: st,
		directory: &stubDirectory{
			contacts: []directory.Contact{{
				ID:    "p-1",
				Name:  "Maria Santos Oliveira",
				Title: "Head of Localization",
				Email: "maria@acme.com",
			}},
		},
		crm:       &stubCRM{contactID: "crm-1"},
		generator: &stubGenerator{d: draft.Draft{Subject: "Quick question about fr.json", Body: "Hi Maria,\n\nSaw the new locale file."}},
		notifier:  &stubNotifier{ts: "1700000000.000100"},
	}
	env.workflow = New(st, env.directory, env.crm, env.generator, env.notifier, opts)
	return env
}

func testPayload() signal.Payload {
	return signal.Payload{
		Company:       "Acme",
		Domain:        "acme.com",
		SignalType:    signal.TypeNewLangFile,
		SignalSummary: "Added fr.json",
	}
}

func (e *testEnv) mustPublish(t *testing.T) string {
	t.Helper()
	res, err := e.workflow.HandleSignal(context.Background(), testPayload())
	require.NoError(t, err)
	require.Equal(t, OutcomePending, res.Outcome)
	return res.RequestID
}

func TestHandleSignal_PublishesPendingRequest(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	res, err := env.workflow.HandleSignal(ctx, testPayload())
	require.NoError(t, err)

	assert.Equal(t, OutcomePending, res.Outcome)
	assert.Empty(t, res.Reason)
	require.NotEmpty(t, res.RequestID)

	req, err := env.store.GetRequest(ctx, res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, req.Status)
	assert.Equal(t, "Acme", req.Company)
	assert.Equal(t, "Maria Santos Oliveira", req.ContactName)
	assert.NotEmpty(t, req.Subject)
	assert.NotEmpty(t, req.Body)
	assert.Equal(t, "1700000000.000100", req.SlackMessageTS)
}

func TestHandleSignal_CachesContacts(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	_, err := env.workflow.HandleSignal(ctx, testPayload())
	require.NoError(t, err)
	_, err = env.workflow.HandleSignal(ctx, testPayload())
	require.NoError(t, err)

	assert.Equal(t, 1, env.directory.calls, "second signal should hit the cache")
}

func TestHandleSignal_NoContacts(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.directory.contacts = nil
	ctx := context.Background()

	res, err := env.workflow.HandleSignal(ctx, testPayload())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Equal(t, SkipNoContacts, res.Reason)

	pending, err := env.store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "skip must not create a record")

	// Empty results are never cached: the next signal queries again.
	_, err = env.workflow.HandleSignal(ctx, testPayload())
	require.NoError(t, err)
	assert.Equal(t, 2, env.directory.calls)
}

func TestHandleSignal_NoEmail(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.directory.contacts = []directory.Contact{{ID: "p-1", Name: "Maria Santos", Title: "VP Engineering"}}
	ctx := context.Background()

	res, err := env.workflow.HandleSignal(ctx, testPayload())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Equal(t, SkipNoEmail, res.Reason)

	pending, err := env.store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestHandleSignal_GeneratorFailure(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.generator.err = draft.ErrGenerationFailed
	ctx := context.Background()

	_, err := env.workflow.HandleSignal(ctx, testPayload())
	assert.ErrorIs(t, err, draft.ErrGenerationFailed)

	pending, err := env.store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "failed generation must not leave a record")
}

func TestHandleSignal_PublishFailureLeavesUntokenedRecord(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.notifier.postErr = errors.New("channel_not_found")
	ctx := context.Background()

	_, err := env.workflow.HandleSignal(ctx, testPayload())
	require.Error(t, err)

	pending, err := env.store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, store.StatusPending, pending[0].Status)
	assert.Empty(t, pending[0].SlackMessageTS, "orphaned record must stay untokened")
}

func TestHandleSignal_CustomRankPolicy(t *testing.T) {
	env := newTestEnv(t, Options{Rank: func(contacts []directory.Contact) directory.Contact {
		return contacts[len(contacts)-1]
	}})
	env.directory.contacts = []directory.Contact{
		{ID: "p-1", Name: "First Pick", Email: "first@acme.com"},
		{ID: "p-2", Name: "Last Pick", Email: "last@acme.com"},
	}
	ctx := context.Background()

	res, err := env.workflow.HandleSignal(ctx, testPayload())
	require.NoError(t, err)

	req, err := env.store.GetRequest(ctx, res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "Last Pick", req.ContactName)
}

func TestHandleInteraction_Unverified(t *testing.T) {
	env := newTestEnv(t, Options{})

	err := env.workflow.HandleInteraction(context.Background(), Interaction{
		Action:    notify.ActionApprove,
		RequestID: "anything",
		Verified:  false,
	})
	assert.ErrorIs(t, err, ErrUnverified)
	assert.Zero(t, env.crm.createCalls)
}

func TestHandleInteraction_ApproveCommitsContact(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	id := env.mustPublish(t)

	err := env.workflow.HandleInteraction(ctx, Interaction{
		Action:    notify.ActionApprove,
		RequestID: id,
		ChannelID: "C123",
		MessageTS: "1700000000.000100",
		UserID:    "U42",
		Verified:  true,
	})
	require.NoError(t, err)

	req, err := env.store.GetRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.StatusApproved, req.Status)

	assert.Equal(t, 1, env.crm.createCalls)
	assert.Equal(t, 1, env.crm.enrollCalls)
	assert.Equal(t, 1, env.notifier.approvedCalls)

	params := env.crm.lastParams
	assert.Equal(t, "maria@acme.com", params.Email)
	assert.Equal(t, "Maria", params.FirstName)
	assert.Equal(t, "Santos Oliveira", params.LastName)
	assert.Equal(t, "Acme", params.OrganizationName)
	assert.Equal(t, "Head of Localization", params.Title)
	assert.Equal(t, "Quick question about fr.json", params.CustomFields["personalized_subject"])
	assert.Contains(t, params.CustomFields["i18n_signals"], "Signal: NEW_LANG_FILE")
}

func TestHandleInteraction_ConcurrentApproveCommitsOnce(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	id := env.mustPublish(t)

	const deliveries = 8
	errs := make(chan error, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- env.workflow.HandleInteraction(ctx, Interaction{
				Action:    notify.ActionApprove,
				RequestID: id,
				Verified:  true,
			})
		}()
	}
	wg.Wait()
	close(errs)

	var wins, dups int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, store.ErrAlreadyProcessed):
			dups++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, deliveries-1, dups)
	assert.Equal(t, 1, env.crm.createCalls, "duplicate deliveries must not reach the CRM")
}

func TestHandleInteraction_SkipSettlesWithoutCRM(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	id := env.mustPublish(t)

	err := env.workflow.HandleInteraction(ctx, Interaction{
		Action:    notify.ActionSkip,
		RequestID: id,
		Verified:  true,
	})
	require.NoError(t, err)

	req, err := env.store.GetRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.StatusSkipped, req.Status)
	assert.Zero(t, env.crm.createCalls)
	assert.Equal(t, 1, env.notifier.skippedCalls)
}

func TestHandleInteraction_SkipOnTerminalRecord(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	id := env.mustPublish(t)

	require.NoError(t, env.workflow.HandleInteraction(ctx, Interaction{
		Action: notify.ActionApprove, RequestID: id, Verified: true,
	}))

	err := env.workflow.HandleInteraction(ctx, Interaction{
		Action: notify.ActionSkip, RequestID: id, Verified: true,
	})
	assert.ErrorIs(t, err, store.ErrAlreadyProcessed)

	req, err := env.store.GetRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.StatusApproved, req.Status, "terminal status must not change")
	assert.Equal(t, 1, env.crm.createCalls)
	assert.Zero(t, env.notifier.skippedCalls)
}

func TestHandleInteraction_CommitErrorKeepsClaim(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.crm.createErr = errors.New("api down")
	ctx := context.Background()
	id := env.mustPublish(t)

	err := env.workflow.HandleInteraction(ctx, Interaction{
		Action: notify.ActionApprove, RequestID: id, Verified: true,
	})

	var commitErr *CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, id, commitErr.RequestID)

	// No rollback: the record stays approved for a manual retry.
	req, err := env.store.GetRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.StatusApproved, req.Status)
	assert.Zero(t, env.crm.enrollCalls)
}

func TestHandleInteraction_EnrollWarning(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.crm.enrollErr = errors.New("sequence full")
	ctx := context.Background()
	id := env.mustPublish(t)

	err := env.workflow.HandleInteraction(ctx, Interaction{
		Action: notify.ActionApprove, RequestID: id, Verified: true,
	})

	var warn *EnrollWarning
	require.ErrorAs(t, err, &warn)
	assert.Equal(t, "crm-1", warn.ContactID)

	req, err := env.store.GetRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.StatusApproved, req.Status, "enrollment failure must not undo approval")
}

func TestHandleInteraction_NoEnrollWithoutContactID(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.crm.contactID = ""
	ctx := context.Background()
	id := env.mustPublish(t)

	err := env.workflow.HandleInteraction(ctx, Interaction{
		Action: notify.ActionApprove, RequestID: id, Verified: true,
	})
	require.NoError(t, err)
	assert.Zero(t, env.crm.enrollCalls)
}

func TestHandleInteraction_EditAndRegenerate(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	id := env.mustPublish(t)

	for _, action := range []string{notify.ActionEdit, notify.ActionRegenerate} {
		err := env.workflow.HandleInteraction(ctx, Interaction{
			Action: action, RequestID: id, Verified: true,
		})
		assert.ErrorIs(t, err, ErrNotImplemented)
	}

	req, err := env.store.GetRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, req.Status, "unimplemented actions leave state untouched")
}

func TestHandleInteraction_UnknownAction(t *testing.T) {
	env := newTestEnv(t, Options{})

	err := env.workflow.HandleInteraction(context.Background(), Interaction{
		Action: "launch_missiles", RequestID: "r", Verified: true,
	})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestHandleInteraction_UnknownRequest(t *testing.T) {
	env := newTestEnv(t, Options{})

	err := env.workflow.HandleInteraction(context.Background(), Interaction{
		Action: notify.ActionApprove, RequestID: "no-such-id", Verified: true,
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHandleInteraction_ReplaySuppressed(t *testing.T) {
	env := newTestEnv(t, Options{Replays: dedupe.New(time.Minute, 100)})
	ctx := context.Background()
	id := env.mustPublish(t)

	in := Interaction{
		Action:    notify.ActionApprove,
		RequestID: id,
		MessageTS: "1700000000.000100",
		Verified:  true,
	}

	require.NoError(t, env.workflow.HandleInteraction(ctx, in))
	assert.ErrorIs(t, env.workflow.HandleInteraction(ctx, in), store.ErrAlreadyProcessed)
	assert.Equal(t, 1, env.crm.createCalls)
}

func TestHandleInteraction_ReplayFilterSkipsUnimplementedActions(t *testing.T) {
	env := newTestEnv(t, Options{Replays: dedupe.New(time.Minute, 100)})
	ctx := context.Background()
	id := env.mustPublish(t)

	in := Interaction{
		Action:    notify.ActionEdit,
		RequestID: id,
		MessageTS: "1700000000.000100",
		Verified:  true,
	}

	// A repeated click on a stateless action answers the same way every
	// time instead of flipping to a duplicate-delivery response.
	assert.ErrorIs(t, env.workflow.HandleInteraction(ctx, in), ErrNotImplemented)
	assert.ErrorIs(t, env.workflow.HandleInteraction(ctx, in), ErrNotImplemented)
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name      string
		wantFirst string
		wantLast  string
	}{
		{"Maria Santos", "Maria", "Santos"},
		{"Maria Santos Oliveira", "Maria", "Santos Oliveira"},
		{"Prince", "Prince", ""},
		{"", "Unknown", ""},
		{"  padded  name ", "padded", "name"},
	}

	for _, tt := range tests {
		first, last := splitName(tt.name)
		assert.Equal(t, tt.wantFirst, first, "first name for %q", tt.name)
		assert.Equal(t, tt.wantLast, last, "last name for %q", tt.name)
	}
}
