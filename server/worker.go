package server

import (
	"errors"
	"fmt"

	"github.com/nqlang/nq/compiler"
)

// Workspace is the compiler-side state of the language server: the active
// vocabulary and the latest analysis of every open document. It is only
// touched from the worker goroutine.
type Workspace struct {
	vocab *compiler.Vocabulary
	docs  map[string]*Analysis
}

// NewWorkspace creates an empty workspace. A nil vocabulary selects the
// default one.
func NewWorkspace(vocab *compiler.Vocabulary) *Workspace {
	if vocab == nil {
		vocab = compiler.DefaultVocabulary()
	}
	return &Workspace{vocab: vocab, docs: make(map[string]*Analysis)}
}

// Vocabulary returns the vocabulary documents are lexed with.
func (ws *Workspace) Vocabulary() *compiler.Vocabulary { return ws.vocab }

// Update re-analyzes a document and stores the result.
func (ws *Workspace) Update(uri, text string) *Analysis {
	a := Analyze(text, ws.vocab.Words)
	ws.docs[uri] = a
	return a
}

// Analysis returns the latest analysis of uri, or nil if it is not open.
func (ws *Workspace) Analysis(uri string) *Analysis { return ws.docs[uri] }

// Close forgets a document.
func (ws *Workspace) Close(uri string) { delete(ws.docs, uri) }

// workRequest represents a unit of work to be executed on the worker goroutine.
type workRequest struct {
	fn   func(*Workspace) any
	done chan workResult
}

// workResult holds the return value from a workspace operation.
type workResult struct {
	value any
	err   error
}

// Worker serializes all workspace access through a single goroutine.
// LSP handlers run concurrently; every analysis goes through the worker
// so documents are compiled one at a time.
type Worker struct {
	ws       *Workspace
	requests chan workRequest
	quit     chan struct{}
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(ws *Workspace) *Worker {
	w := &Worker{
		ws:       ws,
		requests: make(chan workRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes requests sequentially on a dedicated goroutine.
func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			result := w.execute(req.fn)
			req.done <- result
		case <-w.quit:
			return
		}
	}
}

// execute runs a function on the workspace, recovering from panics.
func (w *Worker) execute(fn func(*Workspace) any) workResult {
	var result workResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value = fn(w.ws)
	}()
	return result
}

// Do submits a function for execution on the worker goroutine and blocks
// until it completes. Returns the result and any error (including panics).
func (w *Worker) Do(fn func(*Workspace) any) (any, error) {
	req := workRequest{
		fn:   fn,
		done: make(chan workResult, 1),
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, errWorkerStopped
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.quit:
		return nil, errWorkerStopped
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *Worker) Stop() {
	select {
	case <-w.quit:
	default:
		close(w.quit)
	}
}

var errWorkerStopped = errors.New("server: worker stopped")
