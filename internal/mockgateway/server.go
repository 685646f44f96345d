package mockgateway

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"sync"

	"reportharness/internal/config"
	"reportharness/internal/gateway"
	"reportharness/pkg/logging"

	"github.com/gorilla/mux"
)

// Script produces the samples returned for the poll-th status request
// (starting at 1) of a submitted job.
type Script func(jobID string, job json.RawMessage, poll int) []*gateway.StatusSample

// Options configure a Server.
type Options struct {
	// API is the wire contract to serve: "v1" or "legacy".
	API string
	// PollsUntilDone is the number of status requests answered with ABORT
	// before the final status is reported. Defaults to 1.
	PollsUntilDone int
	// FinalStatus is reported for every task once the job is done.
	// Defaults to SUCCESS.
	FinalStatus gateway.Status
	// Script replaces the default progression entirely when set.
	Script Script
}

type job struct {
	body  json.RawMessage
	polls int
	files map[string][]byte
}

// Server is an in-memory reporting gateway. Submitted jobs progress through
// ABORT to the final status; every report of the job description produces
// one output file.
type Server struct {
	opts   Options
	router *mux.Router
	log    logging.Logger

	mu       sync.Mutex
	nextID   int
	uploads  map[string][]byte
	jobs     map[string]*job
	failures map[string]int
}

// New creates a Server.
func New(opts Options, log logging.Logger) *Server {
	if opts.API == "" {
		opts.API = config.GatewayAPIV1
	}
	if opts.PollsUntilDone <= 0 {
		opts.PollsUntilDone = 1
	}
	if opts.FinalStatus == "" {
		opts.FinalStatus = gateway.StatusSuccess
	}
	s := &Server{
		opts:     opts,
		router:   mux.NewRouter(),
		log:      log,
		uploads:  make(map[string][]byte),
		jobs:     make(map[string]*job),
		failures: make(map[string]int),
	}
	if opts.Script == nil {
		s.opts.Script = s.defaultScript
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.failureMiddleware)
	if s.opts.API == config.GatewayAPILegacy {
		s.router.HandleFunc("/upload", s.handleLegacyUpload).Methods(http.MethodPost).Name("upload")
		s.router.HandleFunc("/task", s.handleLegacySubmit).Methods(http.MethodPost).Name("submit")
		s.router.HandleFunc("/task/{id}", s.handleLegacyStatus).Methods(http.MethodGet).Name("status")
		s.router.HandleFunc("/download/{id}", s.handleLegacyDownload).Methods(http.MethodGet).Name("download")
		return
	}
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/file", s.handleUpload).Methods(http.MethodPost).Name("upload")
	api.HandleFunc("/task", s.handleSubmit).Methods(http.MethodPost).Name("submit")
	api.HandleFunc("/task/{id}", s.handleStatus).Methods(http.MethodGet).Name("status")
	api.HandleFunc("/file/{id}", s.handleDownload).Methods(http.MethodGet).Name("download")
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// FailNext makes the next n requests to route fail with HTTP 503. Routes are
// "upload", "submit", "status" and "download".
func (s *Server) FailNext(route string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] += n
}

func (s *Server) failureMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if route := mux.CurrentRoute(r); route != nil {
			s.mu.Lock()
			fail := s.failures[route.GetName()] > 0
			if fail {
				s.failures[route.GetName()]--
			}
			s.mu.Unlock()
			if fail {
				http.Error(w, "injected failure", http.StatusServiceUnavailable)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Uploads returns a copy of every uploaded bundle by reference.
func (s *Server) Uploads() map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, len(s.uploads))
	for k, v := range s.uploads {
		out[k] = v
	}
	return out
}

// Jobs returns the submitted job descriptions by job ID.
func (s *Server) Jobs() map[string]json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]json.RawMessage, len(s.jobs))
	for k, v := range s.jobs {
		out[k] = v.body
	}
	return out
}

// Polls returns how many status requests a job received.
func (s *Server) Polls(jobID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobID]; ok {
		return j.polls
	}
	return 0
}

func (s *Server) newID(prefix string) string {
	s.nextID++
	return prefix + "-" + strconv.Itoa(s.nextID)
}

func (s *Server) storeUpload(data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID("upload")
	s.uploads[id] = data
	s.log.Debug("Stored upload %s (%d bytes)", id, len(data))
	return id
}

func (s *Server) storeJob(body json.RawMessage) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID("job")
	s.jobs[id] = &job{body: body, files: make(map[string][]byte)}
	s.log.Debug("Accepted job %s", id)
	return id
}

// poll advances the job and returns its samples, or false if the job is unknown.
func (s *Server) poll(jobID string) ([]*gateway.StatusSample, bool) {
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	j.polls++
	poll, body := j.polls, j.body
	s.mu.Unlock()

	samples := s.opts.Script(jobID, body, poll)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sample := range samples {
		if sample == nil {
			continue
		}
		for _, r := range sample.Reports {
			for _, p := range r.Paths {
				if _, exists := j.files[p]; !exists {
					j.files[p] = []byte(fmt.Sprintf("output of %s\n", r.Name))
				}
			}
		}
	}
	return samples, true
}

func (s *Server) files(jobID string) (map[string][]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	out := make(map[string][]byte, len(j.files))
	for k, v := range j.files {
		out[k] = v
	}
	return out, true
}

type scriptJob struct {
	Tasks []struct {
		Reports []struct {
			Name     string `json:"name"`
			Template struct {
				OutputFormat string `json:"outputFormat"`
			} `json:"template"`
		} `json:"reports"`
	} `json:"tasks"`
}

// defaultScript answers ABORT for every task until PollsUntilDone polls
// have passed, then FinalStatus with one output per report.
func (s *Server) defaultScript(jobID string, body json.RawMessage, poll int) []*gateway.StatusSample {
	var desc scriptJob
	_ = json.Unmarshal(body, &desc)

	samples := make([]*gateway.StatusSample, 0, len(desc.Tasks))
	for ti, task := range desc.Tasks {
		sample := &gateway.StatusSample{
			TaskID: fmt.Sprintf("%s-task-%d", jobID, ti),
			Status: gateway.StatusAbort,
		}
		if poll > s.opts.PollsUntilDone {
			sample.Status = s.opts.FinalStatus
			sample.Count = len(task.Reports)
			if sample.Status == gateway.StatusSuccess || sample.Status == gateway.StatusWarning {
				for ri, r := range task.Reports {
					name := r.Name
					if name == "" {
						name = fmt.Sprintf("report%d", ri)
					}
					format := r.Template.OutputFormat
					if format == "" {
						format = "xlsx"
					}
					sample.Reports = append(sample.Reports, gateway.Report{
						Name:  name,
						Paths: []string{path.Join("/var/reports", jobID, fmt.Sprintf("task%d-%s.%s", ti, name, format))},
					})
				}
			}
		}
		samples = append(samples, sample)
	}
	return samples
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type envelope struct {
	Success     bool                    `json:"success"`
	OperationID string                  `json:"operationId,omitempty"`
	Results     []*gateway.StatusSample `json:"results,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil || len(data) == 0 {
		writeJSON(w, http.StatusOK, envelope{Success: false})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, OperationID: s.storeUpload(data)})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil || !json.Valid(data) {
		writeJSON(w, http.StatusOK, envelope{Success: false})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, OperationID: s.storeJob(data)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	samples, ok := s.poll(mux.Vars(r)["id"])
	if !ok {
		writeJSON(w, http.StatusOK, envelope{Success: false})
		return
	}
	if samples == nil {
		samples = []*gateway.StatusSample{}
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Results: samples})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	files, ok := s.files(mux.Vars(r)["id"])
	if !ok {
		http.NotFound(w, r)
		return
	}
	want := r.Header.Get("filename")
	for p, data := range files {
		if path.Base(p) == want {
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(data)
			return
		}
	}
	http.NotFound(w, r)
}

func (s *Server) handleLegacyUpload(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.storeUpload(data))
}

func (s *Server) handleLegacySubmit(w http.ResponseWriter, r *http.Request) {
	var encoded string
	if err := json.NewDecoder(r.Body).Decode(&encoded); err != nil || !json.Valid([]byte(encoded)) {
		http.Error(w, "task body must be a JSON encoded job", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.storeJob(json.RawMessage(encoded)))
}

func (s *Server) handleLegacyStatus(w http.ResponseWriter, r *http.Request) {
	samples, ok := s.poll(mux.Vars(r)["id"])
	if !ok {
		http.NotFound(w, r)
		return
	}
	if samples == nil {
		samples = []*gateway.StatusSample{}
	}
	inner, err := json.Marshal(samples)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, string(inner))
}

func (s *Server) handleLegacyDownload(w http.ResponseWriter, r *http.Request) {
	files, ok := s.files(mux.Vars(r)["id"])
	if !ok {
		http.NotFound(w, r)
		return
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for p, data := range files {
		fw, err := zw.Create(path.Base(p))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = fw.Write(data)
	}
	if err := zw.Close(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	_, _ = w.Write(buf.Bytes())
}
