package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/teemow/goaltiers/internal/calendar"
	"github.com/teemow/goaltiers/internal/instrumentation"
	"github.com/teemow/goaltiers/internal/logging"
	"github.com/teemow/goaltiers/internal/tasks"
)

func (s *HTTPServer) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if err := s.sc.Store().Refresh(r.Context()); err != nil {
		s.metrics().RecordTaskOperation(r.Context(), instrumentation.OperationList, "", instrumentation.StatusError)
		s.logger.Error("failed to refresh tasks", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	all := s.sc.Store().ListAll()
	s.metrics().RecordTaskOperation(r.Context(), instrumentation.OperationList, "", instrumentation.StatusSuccess)
	writeJSON(w, http.StatusOK, all)
}

func (s *HTTPServer) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in tasks.CreateInput
	if !decodeBody(w, r, &in) {
		return
	}

	tm := s.newMutation(r.Context(), instrumentation.OperationCreate)

	level, err := tasks.ParseLevel(string(in.Level))
	if err != nil {
		s.finishMutation(r.Context(), tm, tasks.Task{}, err)
		s.writeTaskError(w, err)
		return
	}
	in.Level = level

	task, err := s.sc.Store().Create(r.Context(), in)
	if err != nil {
		task.Level = level
	}
	s.finishMutation(r.Context(), tm, task, err)
	if err != nil {
		s.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var in tasks.UpdateInput
	if !decodeBody(w, r, &in) {
		return
	}

	tm := s.newMutation(r.Context(), instrumentation.OperationUpdate)
	task, err := s.sc.Store().Update(r.Context(), id, in)
	if err != nil {
		task.ID = id
	}
	s.finishMutation(r.Context(), tm, task, err)
	if err != nil {
		s.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	tm := s.newMutation(r.Context(), instrumentation.OperationDelete)
	task, err := s.sc.Store().Delete(r.Context(), id)
	if err != nil {
		task.ID = id
	}
	s.finishMutation(r.Context(), tm, task, err)
	if err != nil {
		s.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleCalendarEvents lists the signed-in user's events from the start
// of today to the end of the month and returns them bucketed. The
// optional tz query parameter selects the IANA zone the buckets are
// computed in; the server's local zone is used otherwise.
func (s *HTTPServer) handleCalendarEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := sessionFromContext(ctx)

	loc := time.Local
	if tz := r.URL.Query().Get("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid time zone")
			return
		}
		loc = l
	}

	now := s.now().In(loc)
	timeMin, timeMax := calendar.MonthWindow(now)

	events, shared, err := s.fetchEvents(ctx, session.User.Email, timeMin, timeMax)
	if err != nil {
		s.logger.Error("failed to fetch calendar events", logging.UserHash(session.User.Email), logging.Err(err))
		writeError(w, http.StatusBadGateway, "Failed to fetch calendar events")
		return
	}
	if shared {
		s.logger.Debug("calendar events shared with a concurrent request", logging.UserHash(session.User.Email))
	}

	buckets := calendar.Classify(now, events)

	metrics := s.metrics()
	metrics.RecordClassifiedEvents(ctx, "today", len(buckets.Today))
	metrics.RecordClassifiedEvents(ctx, "thisWeek", len(buckets.ThisWeek))
	metrics.RecordClassifiedEvents(ctx, "thisMonth", len(buckets.ThisMonth))

	writeJSON(w, http.StatusOK, buckets)
}

// fetchEvents lists the account's events in [timeMin, timeMax].
// Concurrent requests for the same account and window share one Google
// call; shared reports whether the result came from such a call.
func (s *HTTPServer) fetchEvents(ctx context.Context, account string, timeMin, timeMax time.Time) ([]calendar.Event, bool, error) {
	key := strings.Join([]string{account, s.calendarID, timeMin.Format(time.RFC3339), timeMax.Format(time.RFC3339)}, "|")

	v, err, shared := s.calendarCalls.Do(key, func() (any, error) {
		// The call outlives a caller that gives up while others wait.
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), calendarFetchTimeout)
		defer cancel()

		source, err := s.newEventSource(callCtx, account)
		if err != nil {
			return nil, fmt.Errorf("failed to create calendar client: %w", err)
		}
		return source.ListEvents(callCtx, s.calendarID, timeMin, timeMax)
	})
	if err != nil {
		return nil, shared, err
	}
	return v.([]calendar.Event), shared, nil
}

// calendarForAccount builds a calendar client from the account's session
// token.
func (s *HTTPServer) calendarForAccount(ctx context.Context, account string) (calendar.Lister, error) {
	if s.oauth == nil {
		return nil, errors.New("google login is not configured")
	}
	if !calendar.HasToken(account, s.sessions) {
		return nil, errors.New("no Google token for account")
	}
	client, err := calendar.NewClientForAccount(ctx, account, s.sessions, s.oauth)
	if err != nil {
		return nil, err
	}
	client.SetMetrics(s.metrics())
	s.logger.Debug("calendar client created", logging.UserHash(client.Account()))
	return client, nil
}

func (s *HTTPServer) newMutation(ctx context.Context, action string) *instrumentation.TaskMutation {
	tm := instrumentation.NewTaskMutation(action, instrumentation.SurfaceHTTP)
	if session, ok := sessionFromContext(ctx); ok {
		tm.WithActor(session.User.Email)
	}
	return tm
}

// finishMutation records the outcome of a task mutation in metrics and
// the audit log.
func (s *HTTPServer) finishMutation(ctx context.Context, tm *instrumentation.TaskMutation, task tasks.Task, err error) {
	tm.WithTask(task.ID, string(task.Level)).WithSpanContext(ctx).Complete(err)
	s.metrics().RecordTaskOperation(ctx, tm.Action, string(task.Level), tm.Status())
	s.sc.AuditLogger().LogTaskMutation(ctx, tm)
}

func (s *HTTPServer) writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		writeError(w, http.StatusNotFound, "Task not found")
	case tasks.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("task operation failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeBody reads a JSON request body into v. It writes a 400 response
// and returns false when the body is not valid JSON.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
