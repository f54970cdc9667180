package factory

import (
	"errors"

	"github.com/venturebuilderai/officesim/internal/config"
	"github.com/venturebuilderai/officesim/internal/interfaces"
	"github.com/venturebuilderai/officesim/internal/vendors/gemini"
	"github.com/venturebuilderai/officesim/internal/vendors/ollama"
	"github.com/venturebuilderai/officesim/internal/vendors/openaichat"
	"github.com/venturebuilderai/officesim/internal/vendors/piper"
	"github.com/venturebuilderai/officesim/internal/vendors/whisper"
)

func NewTTS(cfg *config.Config) (interfaces.TTS, error) {
	switch cfg.TTSVendor {
	case "piper":
		// Allow endpoint override via VendorSettings["piper"]["endpoint"]
		if ep := cfg.Vendor("piper")["endpoint"]; ep != "" {
			return piper.NewWithEndpoint(ep), nil
		}
		return piper.New(), nil
	default:
		return nil, errors.New("unknown tts vendor")
	}
}

func NewSTT(cfg *config.Config) (interfaces.STT, error) {
	switch cfg.STTVendor {
	case "whisper":
		// Allow endpoint override via VendorSettings["whisper"]["endpoint"]
		if ep := cfg.Vendor("whisper")["endpoint"]; ep != "" {
			return whisper.NewWithEndpoint(ep), nil
		}
		return whisper.New(), nil
	default:
		return nil, errors.New("unknown stt vendor")
	}
}

func NewLLM(cfg *config.Config) (interfaces.LLM, error) {
	switch cfg.LLMVendor {
	case "ollama":
		// Allow endpoint/model override via VendorSettings["ollama"]
		vs := cfg.Vendor("ollama")
		if vs["endpoint"] != "" || vs["model"] != "" {
			return ollama.NewWithEndpointModel(vs["endpoint"], vs["model"]), nil
		}
		return ollama.New(), nil
	case "openai":
		vs := cfg.Vendor("openai")
		if vs["api_key"] == "" {
			return nil, errors.New("openai llm vendor requires an api key")
		}
		if vs["base_url"] != "" || vs["model"] != "" {
			return openaichat.NewWithEndpoint(vs["base_url"], vs["api_key"], vs["model"]), nil
		}
		return openaichat.New(vs["api_key"]), nil
	case "gemini":
		vs := cfg.Vendor("gemini")
		if vs["api_key"] == "" {
			return nil, errors.New("gemini llm vendor requires an api key")
		}
		return gemini.New(vs["api_key"], vs["model"])
	default:
		return nil, errors.New("unknown llm vendor")
	}
}
