// Package learn provides a tabular Q-learning policy. The learner is queried
// with the state an agent has just entered; it credits the previous choice
// with that state's reward and then picks the next action epsilon-greedily.
package learn

import (
	"fmt"
	"sort"
	"sync"

	"github.com/talgya/firmsim/internal/entropy"
)

// RewardFunc scores a state being entered.
type RewardFunc func(state int) float64

// Config holds the learning knobs.
type Config struct {
	Discount     float64 `yaml:"discount" json:"discount"`
	Explore      float64 `yaml:"explore" json:"explore"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
}

// DefaultConfig mirrors the firm's historical tuning.
func DefaultConfig() Config {
	return Config{Discount: 0.5, Explore: 0.1, LearningRate: 0.8}
}

// QLearner is a one-step Q-learning table over discrete states and actions.
type QLearner struct {
	mu      sync.Mutex
	cfg     Config
	reward  RewardFunc
	rng     entropy.Source
	actions map[int][]int
	q       map[int]map[int]float64

	prevState  int
	prevAction int
	hasPrev    bool
}

// NewQLearner creates a learner. statesActions lists the legal actions per state.
func NewQLearner(statesActions map[int][]int, reward RewardFunc, cfg Config, rng entropy.Source) (*QLearner, error) {
	if len(statesActions) == 0 {
		return nil, fmt.Errorf("qlearner: no states")
	}
	if reward == nil {
		return nil, fmt.Errorf("qlearner: nil reward function")
	}
	if rng == nil {
		rng = entropy.Crypto{}
	}
	q := make(map[int]map[int]float64, len(statesActions))
	actions := make(map[int][]int, len(statesActions))
	for s, as := range statesActions {
		if len(as) == 0 {
			return nil, fmt.Errorf("qlearner: state %d has no actions", s)
		}
		actions[s] = append([]int(nil), as...)
		row := make(map[int]float64, len(as))
		for _, a := range as {
			row[a] = 0
		}
		q[s] = row
	}
	return &QLearner{cfg: cfg, reward: reward, rng: rng, actions: actions, q: q}, nil
}

// ChooseAction learns from entering state and returns the next action.
func (l *QLearner) ChooseAction(state int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	row, ok := l.q[state]
	if !ok {
		panic(fmt.Sprintf("qlearner: unknown state %d", state))
	}

	if l.hasPrev {
		best := maxValue(row)
		old := l.q[l.prevState][l.prevAction]
		target := l.reward(state) + l.cfg.Discount*best
		l.q[l.prevState][l.prevAction] = old + l.cfg.LearningRate*(target-old)
	}

	var action int
	if l.rng.Float64() < l.cfg.Explore {
		as := l.actions[state]
		action = as[l.rng.Intn(len(as))]
	} else {
		action = l.greedy(state)
	}

	l.prevState, l.prevAction, l.hasPrev = state, action, true
	return action
}

// greedy picks the highest-valued action, lowest id on ties.
func (l *QLearner) greedy(state int) int {
	as := l.actions[state]
	best := as[0]
	for _, a := range as[1:] {
		if l.q[state][a] > l.q[state][best] || (l.q[state][a] == l.q[state][best] && a < best) {
			best = a
		}
	}
	return best
}

func maxValue(row map[int]float64) float64 {
	first := true
	var best float64
	for _, v := range row {
		if first || v > best {
			best, first = v, false
		}
	}
	return best
}

// Entry is one cell of the value table.
type Entry struct {
	State  int     `db:"state" json:"state"`
	Action int     `db:"action" json:"action"`
	Value  float64 `db:"value" json:"value"`
}

// Table exports the value table in (state, action) order.
func (l *QLearner) Table() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Entry
	for s, row := range l.q {
		for a, v := range row {
			out = append(out, Entry{State: s, Action: a, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].State != out[j].State {
			return out[i].State < out[j].State
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// Load restores values. Entries for unknown states or actions are rejected.
func (l *QLearner) Load(entries []Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range entries {
		row, ok := l.q[e.State]
		if !ok {
			return fmt.Errorf("load: unknown state %d", e.State)
		}
		if _, ok := row[e.Action]; !ok {
			return fmt.Errorf("load: unknown action %d for state %d", e.Action, e.State)
		}
		row[e.Action] = e.Value
	}
	return nil
}

// Value returns Q(state, action).
func (l *QLearner) Value(state, action int) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q[state][action]
}
