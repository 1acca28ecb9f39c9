package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestAnnounce verifies the registration body and the failure classes.
//
// @example
// go test -v -run TestAnnounce
func TestAnnounce(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		success bool
		wantErr bool
	}{
		{name: "accepted", status: http.StatusOK, success: true},
		{name: "rejected", status: http.StatusOK, success: false, wantErr: true},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Registration
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(RegistrationResponse{ID: got.ID, Success: tt.success})
			}))
			defer srv.Close()

			a := NewAnnouncer(srv.URL, time.Second, Registration{ID: "engine-1", Addr: "10.0.0.2:8080", Plugin: "mmdeploy", MaxBatch: 4})
			err := a.Announce(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, "engine-1", got.ID)
			assert.Equal(t, 4, got.MaxBatch)
			assert.NotZero(t, got.TimeStamp)
		})
	}
}

// TestAnnouncerRun verifies that Run registers immediately and stops with its context.
//
// @example
// go test -v -run TestAnnouncerRun
func TestAnnouncerRun(t *testing.T) {
	hits := make(chan struct{}, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- struct{}{}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewAnnouncer(srv.URL, 20*time.Millisecond, Registration{ID: "engine-1"}).Run(ctx)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-hits:
		case <-time.After(2 * time.Second):
			t.Fatal("no registration received")
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("announcer did not stop")
	}
}
