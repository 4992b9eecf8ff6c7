package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Yibooo/mission-control/internal/form"
	"github.com/Yibooo/mission-control/internal/pipeline"
	"github.com/Yibooo/mission-control/internal/store"
)

func TestListApprovals(t *testing.T) {
	storeMock := &MockStore{}
	storeMock.On("ListDrafts", mock.Anything, store.DraftPending).Return([]store.EmailDraft{
		{ID: "draft-1", LeadID: "lead-1", Subject: "ご提案"},
	}, nil).Once()
	storeMock.On("GetLead", mock.Anything, "lead-1").Return(&store.Lead{ID: "lead-1", CompanyName: "旅館A"}, nil).Once()
	server := newTestServer(t, storeMock, &MockBroker{}, &MockRunner{}, nil, nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/approvals")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var payload map[string][]approvalItem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Len(t, payload["approvals"], 1)
	require.Equal(t, "draft-1", payload["approvals"][0].Draft.ID)
	require.NotNil(t, payload["approvals"][0].Lead)
	require.Equal(t, "旅館A", payload["approvals"][0].Lead.CompanyName)
	storeMock.AssertExpectations(t)
}

func TestApproveDraft(t *testing.T) {
	t.Run("success with edited body", func(t *testing.T) {
		storeMock := &MockStore{}
		storeMock.On("ApproveDraft", mock.Anything, "draft-1", "直した本文", mock.AnythingOfType("string")).Return(nil).Once()
		storeMock.On("GetDraft", mock.Anything, "draft-1").Return(&store.EmailDraft{
			ID: "draft-1", LeadID: "lead-1", ApprovalStatus: store.DraftApproved,
		}, nil).Once()
		storeMock.On("AppendSalesLog", mock.Anything, mock.AnythingOfType("store.SalesLog")).Return(nil).Once()
		server := newTestServer(t, storeMock, &MockBroker{}, &MockRunner{}, nil, nil)
		defer server.Close()

		resp, err := http.Post(server.URL+"/drafts/draft-1/approve", "application/json",
			strings.NewReader(`{"editedBody":"直した本文"}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		var draft store.EmailDraft
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&draft))
		require.Equal(t, store.DraftApproved, draft.ApprovalStatus)
		storeMock.AssertExpectations(t)
	})

	t.Run("already approved", func(t *testing.T) {
		storeMock := &MockStore{}
		storeMock.On("ApproveDraft", mock.Anything, "draft-1", "", mock.AnythingOfType("string")).
			Return(fmt.Errorf("draft draft-1: %w", store.ErrInvalidTransition)).Once()
		server := newTestServer(t, storeMock, &MockBroker{}, &MockRunner{}, nil, nil)
		defer server.Close()

		resp, err := http.Post(server.URL+"/drafts/draft-1/approve", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("missing", func(t *testing.T) {
		storeMock := &MockStore{}
		storeMock.On("ApproveDraft", mock.Anything, "nope", "", mock.AnythingOfType("string")).
			Return(store.ErrNotFound).Once()
		server := newTestServer(t, storeMock, &MockBroker{}, &MockRunner{}, nil, nil)
		defer server.Close()

		resp, err := http.Post(server.URL+"/drafts/nope/approve", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestRejectDraft(t *testing.T) {
	storeMock := &MockStore{}
	storeMock.On("RejectDraft", mock.Anything, "draft-1").Return(nil).Once()
	storeMock.On("GetDraft", mock.Anything, "draft-1").Return(&store.EmailDraft{
		ID: "draft-1", LeadID: "lead-1", ApprovalStatus: store.DraftRejected,
	}, nil).Once()
	storeMock.On("UpdateLeadStatus", mock.Anything, "lead-1", store.LeadStatusRejected, "").Return(nil).Once()
	storeMock.On("AppendSalesLog", mock.Anything, mock.AnythingOfType("store.SalesLog")).Return(nil).Once()
	server := newTestServer(t, storeMock, &MockBroker{}, &MockRunner{}, nil, nil)
	defer server.Close()

	resp, err := http.Post(server.URL+"/drafts/draft-1/reject", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	storeMock.AssertExpectations(t)
}

func TestMarkDraftSent(t *testing.T) {
	storeMock := &MockStore{}
	storeMock.On("MarkDraftSent", mock.Anything, "draft-1", mock.AnythingOfType("string")).Return(nil).Once()
	storeMock.On("GetDraft", mock.Anything, "draft-1").Return(&store.EmailDraft{
		ID: "draft-1", LeadID: "lead-1", ApprovalStatus: store.DraftSent,
	}, nil).Once()
	storeMock.On("UpdateLeadStatus", mock.Anything, "lead-1", store.LeadStatusContacted, "").Return(nil).Once()
	storeMock.On("AppendSalesLog", mock.Anything, mock.AnythingOfType("store.SalesLog")).Return(nil).Once()
	server := newTestServer(t, storeMock, &MockBroker{}, &MockRunner{}, nil, nil)
	defer server.Close()

	resp, err := http.Post(server.URL+"/drafts/draft-1/sent", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	storeMock.AssertExpectations(t)
}

func TestSubmitDraft(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		server := newTestServer(t, &MockStore{}, &MockBroker{}, &MockRunner{}, nil, nil)
		defer server.Close()

		resp, err := http.Post(server.URL+"/drafts/draft-1/submit", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("success", func(t *testing.T) {
		submitter := &MockSubmitter{}
		submitter.On("SubmitApprovedDraft", mock.Anything, "draft-1").Return(&pipeline.SubmitResult{
			Success: true, Message: "フォーム送信が完了しました", FormURL: "https://example.jp/contact",
		}, nil).Once()
		server := newTestServer(t, &MockStore{}, &MockBroker{}, &MockRunner{}, submitter, nil)
		defer server.Close()

		resp, err := http.Post(server.URL+"/drafts/draft-1/submit", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		var result pipeline.SubmitResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		require.True(t, result.Success)
		submitter.AssertExpectations(t)
	})

	t.Run("not approved", func(t *testing.T) {
		submitter := &MockSubmitter{}
		submitter.On("SubmitApprovedDraft", mock.Anything, "draft-1").
			Return(nil, fmt.Errorf("draft draft-1 is pending: %w", pipeline.ErrDraftNotApproved)).Once()
		server := newTestServer(t, &MockStore{}, &MockBroker{}, &MockRunner{}, submitter, nil)
		defer server.Close()

		resp, err := http.Post(server.URL+"/drafts/draft-1/submit", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("captcha blocked", func(t *testing.T) {
		submitter := &MockSubmitter{}
		submitter.On("SubmitApprovedDraft", mock.Anything, "draft-1").
			Return(nil, pipeline.ErrCaptchaBlocked).Once()
		server := newTestServer(t, &MockStore{}, &MockBroker{}, &MockRunner{}, submitter, nil)
		defer server.Close()

		resp, err := http.Post(server.URL+"/drafts/draft-1/submit", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("no form structure", func(t *testing.T) {
		submitter := &MockSubmitter{}
		submitter.On("SubmitApprovedDraft", mock.Anything, "draft-1").
			Return(nil, form.ErrNoStructure).Once()
		server := newTestServer(t, &MockStore{}, &MockBroker{}, &MockRunner{}, submitter, nil)
		defer server.Close()

		resp, err := http.Post(server.URL+"/drafts/draft-1/submit", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("missing draft", func(t *testing.T) {
		submitter := &MockSubmitter{}
		submitter.On("SubmitApprovedDraft", mock.Anything, "nope").
			Return(nil, store.ErrNotFound).Once()
		server := newTestServer(t, &MockStore{}, &MockBroker{}, &MockRunner{}, submitter, nil)
		defer server.Close()

		resp, err := http.Post(server.URL+"/drafts/nope/submit", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
