// Package telemetry serves a board's encoders and actuators over HTTP and
// streams encoder reports to websocket clients.
package telemetry

import (
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"robocore/host/robot"
)

// Controller is the part of *robot.Robot the server drives
type Controller interface {
	EncoderPosition(id int) (robot.EncoderReport, error)
	SetMotorDuty(id, percent int) error
	MotorState(id int) (robot.ActuatorState, error)
	MoveServo(id, degree int) error
	ServoState(id int) (robot.ActuatorState, error)
	EmergencyStop() error
}

// Sink receives every published encoder report, e.g. a RedisSink
type Sink interface {
	Publish(rep robot.EncoderReport) error
}

// sinkQueue is how many reports a slow sink may fall behind before reports
// to it are dropped.
const sinkQueue = 64

// sinkWorker delivers queued reports to one sink on its own goroutine.
type sinkWorker struct {
	sink  Sink
	queue chan robot.EncoderReport
}

// Server is the telemetry HTTP server
type Server struct {
	ctrl   Controller
	hub    *Hub
	logger *log.Logger

	mu     sync.Mutex
	sinks  []*sinkWorker
	closed bool
}

func NewServer(ctrl Controller, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(os.Stdout, "[telemetry] ", log.Ldate|log.Ltime|log.Lshortfile)
	}
	return &Server{
		ctrl:   ctrl,
		hub:    NewHub(logger),
		logger: logger,
	}
}

// Hub returns the websocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// AddSink forwards future reports to sink as well
func (s *Server) AddSink(sink Sink) {
	w := &sinkWorker{sink: sink, queue: make(chan robot.EncoderReport, sinkQueue)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.sinks = append(s.sinks, w)
	go s.drain(w)
}

func (s *Server) drain(w *sinkWorker) {
	for rep := range w.queue {
		if err := w.sink.Publish(rep); err != nil {
			s.logger.Printf("[sink][error] encoder %d: %v", rep.ID, err)
		}
	}
}

// Publish queues rep for websocket clients and sinks without blocking. It
// matches the robot.Robot OnEncoder callback, which runs on the transport
// reader.
func (s *Server) Publish(rep robot.EncoderReport) {
	s.hub.Publish(rep)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.sinks {
		select {
		case w.queue <- rep:
		default:
			s.logger.Printf("[sink][drop] encoder %d: sink is behind", rep.ID)
		}
	}
}

// Close stops sink delivery and closes every sink that is an io.Closer.
// Reports still queued are dropped.
func (s *Server) Close() error {
	s.mu.Lock()
	workers := s.sinks
	s.sinks = nil
	s.closed = true
	for _, w := range workers {
		close(w.queue)
	}
	s.mu.Unlock()

	var firstErr error
	for _, w := range workers {
		if c, ok := w.sink.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Recoverer) // make sure this is last

	r.Get("/encoders", s.listEncoders)
	r.Get("/encoders/{id}", s.getEncoder)
	r.Get("/motors/{id}", s.getMotor)
	r.Put("/motors/{id}", s.putMotor)
	r.Get("/servos/{id}", s.getServo)
	r.Put("/servos/{id}", s.putServo)
	r.Post("/stop", s.stop)
	r.Get("/ws", s.hub.ServeHTTP)

	return r
}

// ListenAndServe serves Handler on addr
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Printf("listening on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

//---
// Payloads
//---

// MotorPayload is the PUT /motors/{id} body
type MotorPayload struct {
	Percent *int `json:"percent"`
}

func (p *MotorPayload) Bind(r *http.Request) error {
	if p.Percent == nil {
		return errors.New("missing percent")
	}
	return nil
}

// ServoPayload is the PUT /servos/{id} body
type ServoPayload struct {
	Degree *int `json:"degree"`
}

func (p *ServoPayload) Bind(r *http.Request) error {
	if p.Degree == nil {
		return errors.New("missing degree")
	}
	return nil
}

//---
// Views
//---

func urlID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

// renderError maps unknown ids to 404 and everything else to 502
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, robot.ErrUnknownEncoder) ||
		errors.Is(err, robot.ErrUnknownMotor) ||
		errors.Is(err, robot.ErrUnknownServo) {
		render.Render(w, r, ErrNotFound(err))
		return
	}
	render.Render(w, r, ErrBoard(err))
}

func (s *Server) listEncoders(w http.ResponseWriter, r *http.Request) {
	reports := []robot.EncoderReport{}
	for id := 0; ; id++ {
		rep, err := s.ctrl.EncoderPosition(id)
		if errors.Is(err, robot.ErrUnknownEncoder) {
			break
		}
		if err != nil {
			renderError(w, r, err)
			return
		}
		reports = append(reports, rep)
	}
	render.JSON(w, r, reports)
}

func (s *Server) getEncoder(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	rep, err := s.ctrl.EncoderPosition(id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, rep)
}

func (s *Server) getMotor(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	st, err := s.ctrl.MotorState(id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, st)
}

func (s *Server) putMotor(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	data := &MotorPayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if err := s.ctrl.SetMotorDuty(id, *data.Percent); err != nil {
		renderError(w, r, err)
		return
	}
	s.getMotor(w, r)
}

func (s *Server) getServo(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	st, err := s.ctrl.ServoState(id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, st)
}

func (s *Server) putServo(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	data := &ServoPayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if err := s.ctrl.MoveServo(id, *data.Degree); err != nil {
		renderError(w, r, err)
		return
	}
	s.getServo(w, r)
}

func (s *Server) stop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.EmergencyStop(); err != nil {
		renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}
