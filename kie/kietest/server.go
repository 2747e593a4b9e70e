// Package kietest provides an in-memory Kie Server, controller and
// deployment for exercising scenarios without a cluster.
//
// The server knows a single process, definition-project.longScript:
//
//	start            name=ONE, waits for Signal1
//	Signal1          runs a long script, then name=TWO, waits for Signal2
//	Signal2          completes the instance
//
// Signals the current node does not listen to are ignored. The first long
// script blocks until Release or Kill; Kill rolls it back as a crashed
// server would, leaving the instance waiting for Signal1 with name=ONE.
package kietest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/kiegroup/kie-cloud-tests/test/kie/model"
)

// VariableName is the variable the long script process tracks
const VariableName = "name"

// Sentinel values of VariableName
const (
	ValueOne = "ONE"
	ValueTwo = "TWO"
)

type node int

const (
	waitSignal1 node = iota
	inScript
	waitSignal2
	done
)

type instance struct {
	pi      model.ProcessInstance
	node    node
	vars    map[string]interface{}
	outcome chan bool
}

// Server is a fake Kie Server with an embedded controller
type Server struct {
	mu            sync.Mutex
	srv           *httptest.Server
	info          model.KieServerInfo
	containers    map[string]*model.KieContainer
	startPolls    map[string]int
	specs         map[string]model.ContainerSpec
	instances     map[int64]*instance
	nextID        int64
	generation    int
	replicas      int
	blocking      int
	startAfter    int
	user          string
	signals       []string
	scriptStarted chan struct{}
}

// Option configures a Server
type Option func(*Server)

// WithReplicas sets the number of pods backing the fake server
func WithReplicas(n int) Option {
	return func(s *Server) {
		s.replicas = n
	}
}

// WithBlockingScripts sets how many long scripts block until Release or
// Kill. Later scripts finish as soon as they start. The default is 1.
func WithBlockingScripts(n int) Option {
	return func(s *Server) {
		s.blocking = n
	}
}

// WithStartAfterPolls keeps containers in CREATING for n status reads
func WithStartAfterPolls(n int) Option {
	return func(s *Server) {
		s.startAfter = n
	}
}

// NewServer starts a fake Kie Server. Close it when done.
func NewServer(opts ...Option) *Server {
	s := &Server{
		info: model.KieServerInfo{
			ServerID:     "myapp-kieserver",
			Name:         "myapp-kieserver",
			Version:      "7.67.0.Final",
			Capabilities: []string{"KieServer", "BRM", "BPM"},
		},
		containers:    map[string]*model.KieContainer{},
		startPolls:    map[string]int{},
		specs:         map[string]model.ContainerSpec{},
		instances:     map[int64]*instance{},
		replicas:      1,
		blocking:      1,
		startAfter:    1,
		user:          "yoda",
		scriptStarted: make(chan struct{}, 16),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /services/rest/server", s.handleInfo)
	mux.HandleFunc("GET /services/rest/server/containers", s.handleListContainers)
	mux.HandleFunc("GET /services/rest/server/containers/{cid}", s.handleGetContainer)
	mux.HandleFunc("DELETE /services/rest/server/containers/{cid}", s.handleDisposeContainer)
	mux.HandleFunc("POST /services/rest/server/containers/{cid}/processes/{processId}/instances", s.handleStart)
	mux.HandleFunc("GET /services/rest/server/containers/{cid}/processes/instances/{pid}", s.handleGetInstance)
	mux.HandleFunc("DELETE /services/rest/server/containers/{cid}/processes/instances/{pid}", s.handleAbort)
	mux.HandleFunc("GET /services/rest/server/containers/{cid}/processes/instances/{pid}/variables", s.handleVariables)
	mux.HandleFunc("POST /services/rest/server/containers/{cid}/processes/instances/{pid}/signal/{signal}", s.handleSignal)
	mux.HandleFunc("GET /services/rest/server/queries/processes/instances", s.handleQuery)
	mux.HandleFunc("GET /rest/controller/management/servers/{sid}", s.handleGetTemplate)
	mux.HandleFunc("PUT /rest/controller/management/servers/{sid}/containers/{cid}", s.handleSaveSpec)
	mux.HandleFunc("DELETE /rest/controller/management/servers/{sid}/containers/{cid}", s.handleDeleteSpec)

	s.srv = httptest.NewServer(mux)
	return s
}

// URL is the base URL of both the Kie Server and the controller
func (s *Server) URL() string {
	return s.srv.URL
}

// Close shuts the server down, rolling back any running script
func (s *Server) Close() {
	s.Kill()
	s.srv.Close()
}

// ScriptStarted receives a value each time a long script begins
func (s *Server) ScriptStarted() <-chan struct{} {
	return s.scriptStarted
}

// Release lets every running long script finish
func (s *Server) Release() {
	s.finishScripts(true)
}

// Kill simulates the forced deletion of every pod: running scripts roll
// back and the replacement pods get new names.
func (s *Server) Kill() {
	s.finishScripts(false)
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

func (s *Server) finishScripts(commit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range s.instances {
		if inst.node == inScript {
			inst.outcome <- commit
			if commit {
				inst.vars[VariableName] = ValueTwo
				inst.node = waitSignal2
			} else {
				inst.node = waitSignal1
			}
		}
	}
}

// InstanceNames returns the names of the pods currently backing the server
func (s *Server) InstanceNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, s.replicas)
	for i := 0; i < s.replicas; i++ {
		names = append(names, fmt.Sprintf("myapp-kieserver-%d-%c", s.generation+1, 'a'+rune(i)))
	}
	sort.Strings(names)
	return names
}

// Signals returns "<pid>:<signal>" for every signal received, in order
func (s *Server) Signals() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.signals...)
}

// ContainerSpecs returns the container specs saved on the controller
func (s *Server) ContainerSpecs() []model.ContainerSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	specs := make([]model.ContainerSpec, 0, len(s.specs))
	for _, spec := range s.specs {
		specs = append(specs, spec)
	}
	return specs
}

// Containers returns the ids of the containers deployed on the server
func (s *Server) Containers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.containers))
	for id := range s.containers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func success(msg, key string, v interface{}) map[string]interface{} {
	resp := map[string]interface{}{"type": model.ResponseSuccess, "msg": msg}
	if key != "" {
		resp["result"] = map[string]interface{}{key: v}
	}
	return resp
}

func failure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"type": model.ResponseFailure, "msg": msg})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	info := s.info
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, success("Kie Server info", "kie-server-info", info))
}

func (s *Server) handleListContainers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := model.KieContainerList{Containers: []model.KieContainer{}}
	for _, c := range s.containers {
		list.Containers = append(list.Containers, *c)
	}
	writeJSON(w, http.StatusOK, success("List of created containers", "kie-containers", list))
}

func (s *Server) handleGetContainer(w http.ResponseWriter, r *http.Request) {
	cid := r.PathValue("cid")
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.containers[cid]
	if !ok {
		failure(w, http.StatusNotFound, "Container "+cid+" is not instantiated.")
		return
	}
	if c.Status == model.ContainerCreating {
		s.startPolls[cid]++
		if s.startPolls[cid] > s.startAfter {
			c.Status = model.ContainerStarted
		}
	}
	writeJSON(w, http.StatusOK, success("Info for container "+cid, "kie-container", c))
}

func (s *Server) handleDisposeContainer(w http.ResponseWriter, r *http.Request) {
	cid := r.PathValue("cid")
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.containers, cid)
	writeJSON(w, http.StatusOK, success("Container "+cid+" successfully disposed.", "", nil))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	cid, processID := r.PathValue("cid"), r.PathValue("processId")

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.containers[cid]
	if !ok || c.Status != model.ContainerStarted {
		failure(w, http.StatusNotFound, "Container "+cid+" is not started")
		return
	}
	if processID != model.ProcessIDLongScript {
		failure(w, http.StatusNotFound, "Could not find process definition with id "+processID)
		return
	}

	s.nextID++
	s.instances[s.nextID] = &instance{
		pi: model.ProcessInstance{
			ID:          s.nextID,
			ProcessID:   processID,
			ProcessName: "longScript",
			State:       model.StateActive,
			ContainerID: cid,
			Initiator:   s.user,
		},
		node: waitSignal1,
		vars: map[string]interface{}{
			VariableName: ValueOne,
			"initiator":  s.user,
		},
	}
	writeJSON(w, http.StatusCreated, s.nextID)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*instance, bool) {
	pid, err := strconv.ParseInt(r.PathValue("pid"), 10, 64)
	if err != nil {
		failure(w, http.StatusBadRequest, "invalid process instance id")
		return nil, false
	}
	inst, ok := s.instances[pid]
	if !ok || inst.pi.ContainerID != r.PathValue("cid") {
		failure(w, http.StatusNotFound, fmt.Sprintf("Could not find process instance with id %d", pid))
		return nil, false
	}
	return inst, true
}

func (s *Server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, inst.pi)
}

func (s *Server) handleVariables(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.lookup(w, r)
	if !ok {
		return
	}
	vars := make(map[string]interface{}, len(inst.vars))
	for k, v := range inst.vars {
		vars[k] = v
	}
	writeJSON(w, http.StatusOK, vars)
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.lookup(w, r)
	if !ok {
		return
	}
	inst.node = done
	inst.pi.State = model.StateAborted
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	signal := r.PathValue("signal")

	s.mu.Lock()
	inst, ok := s.lookup(w, r)
	if !ok {
		s.mu.Unlock()
		return
	}
	s.signals = append(s.signals, fmt.Sprintf("%d:%s", inst.pi.ID, signal))

	switch {
	case signal == model.SignalName && inst.node == waitSignal1:
		if s.blocking <= 0 {
			inst.vars[VariableName] = ValueTwo
			inst.node = waitSignal2
			s.mu.Unlock()
			s.notifyScript()
			w.WriteHeader(http.StatusOK)
			return
		}
		s.blocking--
		inst.node = inScript
		inst.outcome = make(chan bool, 1)
		outcome := inst.outcome
		s.mu.Unlock()
		s.notifyScript()

		select {
		case committed := <-outcome:
			if committed {
				w.WriteHeader(http.StatusOK)
				return
			}
			failure(w, http.StatusServiceUnavailable, "Kie Server instance terminated")
		case <-r.Context().Done():
		}
		return

	case signal == model.Signal2Name && inst.node == waitSignal2:
		inst.node = done
		inst.pi.State = model.StateCompleted
	}

	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, err := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if err != nil || pageSize <= 0 {
		pageSize = 10
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.instances))
	for id := range s.instances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	list := model.ProcessInstanceList{Items: []model.ProcessInstance{}}
	for i := page * pageSize; i < len(ids) && i < (page+1)*pageSize; i++ {
		list.Items = append(list.Items, s.instances[ids[i]].pi)
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("sid")
	s.mu.Lock()
	defer s.mu.Unlock()

	if sid != s.info.ServerID {
		http.NotFound(w, r)
		return
	}
	tpl := model.ServerTemplate{ServerID: s.info.ServerID, ServerName: s.info.Name}
	for _, spec := range s.specs {
		tpl.ContainerSpecs = append(tpl.ContainerSpecs, spec)
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleSaveSpec(w http.ResponseWriter, r *http.Request) {
	sid, cid := r.PathValue("sid"), r.PathValue("cid")

	var spec model.ContainerSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sid != s.info.ServerID || spec.ServerTemplateKey.ServerID != sid || spec.ContainerID != cid {
		http.Error(w, "server template and container spec do not match", http.StatusBadRequest)
		return
	}
	if spec.ReleaseID != model.DefinitionProject {
		http.Error(w, "unknown release "+spec.ReleaseID.String(), http.StatusBadRequest)
		return
	}

	s.specs[cid] = spec
	if spec.Status == model.ContainerStarted {
		if _, exists := s.containers[cid]; !exists {
			s.containers[cid] = &model.KieContainer{
				ContainerID: cid,
				Alias:       spec.ContainerName,
				ReleaseID:   spec.ReleaseID,
				Status:      model.ContainerCreating,
			}
		}
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleDeleteSpec(w http.ResponseWriter, r *http.Request) {
	cid := r.PathValue("cid")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.specs[cid]; !ok {
		http.NotFound(w, r)
		return
	}
	delete(s.specs, cid)
	delete(s.containers, cid)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) notifyScript() {
	select {
	case s.scriptStarted <- struct{}{}:
	default:
	}
}

// waitScript blocks until a long script starts or timeout elapses
func (s *Server) waitScript(timeout time.Duration) bool {
	select {
	case <-s.scriptStarted:
		return true
	case <-time.After(timeout):
		return false
	}
}
