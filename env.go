package tensorforce

import "errors"

// Env is an instance of an RL environment.
type Env interface {
	// Reset resets the environment to a start state.
	Reset() (observation []float64, err error)

	// Step takes an action in the environment.
	Step(action []float64) (observation []float64, reward float64,
		done bool, err error)
}

// MaxStepsEnv wraps an Env and ends episodes early if
// they run longer than MaxSteps timesteps.
type MaxStepsEnv struct {
	Env
	MaxSteps int

	steps int
}

// Reset resets the environment.
func (m *MaxStepsEnv) Reset() ([]float64, error) {
	m.steps = 0
	return m.Env.Reset()
}

// Step takes a step in the environment.
func (m *MaxStepsEnv) Step(action []float64) ([]float64, float64, bool, error) {
	obs, rew, done, err := m.Env.Step(action)
	m.steps++
	if m.steps == m.MaxSteps {
		done = true
	}
	return obs, rew, done, err
}

// MetaEnv is a meta-learning environment in which
// episodes consist of one or more episodes of a contained
// environment.
//
// The action space is unchanged, but the observations are
// augmented (at the end) with the previous action, the
// reward, and the done value (in that order).
//
// For the first observation, the action, reward, and done
// values are set to 0.
type MetaEnv struct {
	Env

	// NumRuns is the number of times to run Env in each
	// meta-episode.
	NumRuns int

	// ActionSize is the size of action vectors.
	// It is used by Reset() to create a zero last-action
	// vector.
	ActionSize int

	runsRemaining int
}

// Reset resets the environment.
func (m *MetaEnv) Reset() (obs []float64, err error) {
	m.runsRemaining = m.NumRuns
	obs, err = m.Env.Reset()
	if err != nil {
		return
	}
	obs = augmentObs(obs, make([]float64, m.ActionSize), 0, 0)
	return
}

// Step takes a step in the environment.
func (m *MetaEnv) Step(act []float64) (obs []float64, rew float64,
	done bool, err error) {
	if m.runsRemaining <= 0 {
		err = errors.New("step: done sub-episodes in meta-environment")
		return
	}
	obs, rew, done, err = m.Env.Step(act)
	if err != nil {
		return
	}
	var doneFlag float64
	if done {
		doneFlag = 1
		m.runsRemaining--
		done = m.runsRemaining == 0
		if !done {
			obs, err = m.Env.Reset()
			if err != nil {
				return
			}
		}
	}
	obs = augmentObs(obs, act, rew, doneFlag)
	return
}

func augmentObs(obs, act []float64, rew, doneFlag float64) []float64 {
	res := make([]float64, 0, len(obs)+len(act)+2)
	res = append(res, obs...)
	res = append(res, act...)
	return append(res, rew, doneFlag)
}
