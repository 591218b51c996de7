package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// TaskKind - вид задачи в графе.
type TaskKind string

const (
	TaskImage     TaskKind = "image"
	TaskVoice     TaskKind = "voice"
	TaskAnimation TaskKind = "animation"
)

// TaskID однозначно задает задачу: вид и номер страницы.
type TaskID struct {
	Kind TaskKind
	Page int
}

func (id TaskID) String() string {
	return fmt.Sprintf("%s[%d]", id.Kind, id.Page)
}

var (
	ErrDuplicateTask     = errors.New("task already added to graph")
	ErrUnknownDependency = errors.New("task depends on a task that is not in the graph")
	// ErrTaskPanicked оборачивает панику внутри задачи или вызова внешнего сервиса.
	ErrTaskPanicked = errors.New("task panicked")
)

type task struct {
	id        TaskID
	dependsOn []TaskID
	run       func(ctx context.Context)
}

// Graph - ациклический граф задач одного этапа. Зависимость можно объявить
// только на уже добавленную задачу, поэтому циклы невозможны.
type Graph struct {
	tasks map[TaskID]*task
	order []TaskID
}

func NewGraph() *Graph {
	return &Graph{tasks: make(map[TaskID]*task)}
}

// Add добавляет задачу. run не должен возвращать ошибки: результат задачи
// записывается ею самой, сбои изолируются внутри.
func (g *Graph) Add(kind TaskKind, page int, run func(ctx context.Context), dependsOn ...TaskID) (TaskID, error) {
	id := TaskID{Kind: kind, Page: page}
	if _, exists := g.tasks[id]; exists {
		return id, fmt.Errorf("%w: %s", ErrDuplicateTask, id)
	}
	for _, dep := range dependsOn {
		if _, ok := g.tasks[dep]; !ok {
			return id, fmt.Errorf("%w: %s -> %s", ErrUnknownDependency, id, dep)
		}
	}
	g.tasks[id] = &task{id: id, dependsOn: dependsOn, run: run}
	g.order = append(g.order, id)
	return id, nil
}

func (g *Graph) Len() int {
	return len(g.order)
}

// Scheduler выполняет граф на пуле горутин ants: задача запускается, как только
// завершены все ее зависимости. Паника в задаче перехватывается и считается
// ее завершением.
type Scheduler struct {
	pool   *ants.Pool
	logger *zap.Logger
}

func NewScheduler(size int, logger *zap.Logger) (*Scheduler, error) {
	if size < 1 {
		size = 1
	}
	logger = logger.Named("Scheduler")
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(p interface{}) {
		logger.Error("Worker panic escaped task guard", zap.Any("panic", p))
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return &Scheduler{pool: pool, logger: logger}, nil
}

// Release останавливает пул.
func (s *Scheduler) Release() {
	s.pool.Release()
}

// Run выполняет все задачи графа и ждет их завершения. Отмена ctx не
// прерывает уже запущенные задачи, они видят ее через свой контекст.
// Возвращает ctx.Err(), если контекст завершился к концу выполнения.
func (s *Scheduler) Run(ctx context.Context, g *Graph) error {
	total := g.Len()
	if total == 0 {
		return ctx.Err()
	}

	pending := make(map[TaskID]int, total)
	dependents := make(map[TaskID][]TaskID, total)
	for _, id := range g.order {
		t := g.tasks[id]
		pending[id] = len(t.dependsOn)
		for _, dep := range t.dependsOn {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	done := make(chan TaskID, total)
	var wg sync.WaitGroup
	start := func(t *task) {
		wg.Add(1)
		job := func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("Task panicked", zap.Stringer("task", t.id), zap.Any("panic", r))
				}
				done <- t.id
			}()
			t.run(ctx)
		}
		if err := s.pool.Submit(job); err != nil {
			s.logger.Warn("Pool rejected task, running in a dedicated goroutine",
				zap.Stringer("task", t.id), zap.Error(err))
			go job()
		}
	}

	for _, id := range g.order {
		if pending[id] == 0 {
			start(g.tasks[id])
		}
	}
	for completed := 0; completed < total; completed++ {
		id := <-done
		for _, next := range dependents[id] {
			pending[next]--
			if pending[next] == 0 {
				start(g.tasks[next])
			}
		}
	}
	wg.Wait()
	return ctx.Err()
}
