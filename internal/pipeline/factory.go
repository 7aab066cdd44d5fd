package pipeline

import (
	"github.com/loqalabs/lecsum/internal/config"
	"github.com/loqalabs/lecsum/internal/llm"
	"github.com/loqalabs/lecsum/internal/stt"
)

// Adapters are the engine clients used by one run.
type Adapters struct {
	Recognizer stt.Recognizer
	Backend    llm.Backend
}

// Factory builds adapters from the operational configuration.
type Factory interface {
	Build(cfg config.Config) (Adapters, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(cfg config.Config) (Adapters, error)

func (f FactoryFunc) Build(cfg config.Config) (Adapters, error) { return f(cfg) }

// DefaultFactory selects backends by stt.mode and llm.mode.
var DefaultFactory Factory = FactoryFunc(func(cfg config.Config) (Adapters, error) {
	rec, err := stt.New(cfg.STT)
	if err != nil {
		return Adapters{}, err
	}
	backend, err := llm.New(cfg.LLM)
	if err != nil {
		return Adapters{}, err
	}
	return Adapters{Recognizer: rec, Backend: backend}, nil
})
