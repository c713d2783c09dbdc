package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/vadiminshakov/riskwatch/internal/entity"
)

const journalPollInterval = 2 * time.Second

type snapshotReader interface {
	State(name string) *entity.InstanceState
}

type cycleSummaryReader interface {
	SummariesAfter(index uint64) ([]entity.CycleSummaryRecord, error)
}

// Server exposes the snapshot query endpoint, the HTML dashboard and an SSE
// stream of sync-cycle summaries.
type Server struct {
	Addr    string
	Store   snapshotReader
	Journal cycleSummaryReader
}

// NewServer creates a new web server instance.
func NewServer(addr string, store snapshotReader, journal cycleSummaryReader) *Server {
	return &Server{Addr: addr, Store: store, Journal: journal}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/instances/", s.handleInstance)
	mux.HandleFunc("/risk/stream", s.handleRiskStream)

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

type instanceSnapshot struct {
	Instance        string            `json:"instance"`
	LastSyncedBlock uint64            `json:"last_synced_block"`
	LastSync        time.Time         `json:"last_sync"`
	Assets          []entity.Asset    `json:"assets"`
	Borrowers       []entity.Borrower `json:"borrowers"`
}

// handleInstance serves GET /instances/{name}: the instance snapshot with
// borrowers sorted by percent-to-liquidation descending. An unknown instance
// or a serialization failure yields a generic bad request, nothing more.
func (s *Server) handleInstance(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "snapshot store not available")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/instances/")
	state := s.Store.State(name)
	if name == "" || state == nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	payload, err := json.Marshal(instanceSnapshot{
		Instance:        name,
		LastSyncedBlock: state.LastSyncedBlock,
		LastSync:        state.LastSync,
		Assets:          state.Catalog.All(),
		Borrowers:       sortedBorrowers(state.Borrowers),
	})
	if err != nil {
		log.Printf("instance snapshot marshal: %v", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

// sortedBorrowers materializes the population as a list ordered by
// percent-to-liquidation descending. Entries are first laid out by account
// address so equal percentages keep a stable, deterministic order.
func sortedBorrowers(population map[string]entity.Borrower) []entity.Borrower {
	accounts := make([]string, 0, len(population))
	for hex := range population {
		accounts = append(accounts, hex)
	}
	// keys are checksummed hex, compare case-insensitively for address order
	sort.Slice(accounts, func(i, j int) bool {
		return strings.ToLower(accounts[i]) < strings.ToLower(accounts[j])
	})

	borrowers := make([]entity.Borrower, 0, len(accounts))
	for _, hex := range accounts {
		borrowers = append(borrowers, population[hex])
	}
	sort.SliceStable(borrowers, func(i, j int) bool {
		return borrowers[i].PercentToLiquidation.GreaterThan(borrowers[j].PercentToLiquidation)
	})
	return borrowers
}

func (s *Server) handleRiskStream(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "risk journal not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// send a comment heartbeat every 30s so proxies keep connection
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(journalPollInterval)
	defer pollTicker.Stop()

	lastIndex := uint64(0)
	sendSummaries := func() error {
		records, err := s.Journal.SummariesAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Summary)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "event: cycle\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendSummaries(); err != nil {
		http.Error(w, "failed to load cycle summaries", http.StatusInternalServerError)
		log.Printf("risk stream initial load: %v", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendSummaries(); err != nil {
				log.Printf("risk stream poll err: %v", err)
			}
		}
	}
}
