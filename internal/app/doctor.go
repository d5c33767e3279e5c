package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/ocr"
)

// Check statuses.
const (
	CheckOK   = "ok"
	CheckWarn = "warn"
	CheckFail = "fail"
)

type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type Report struct {
	OK     bool    `json:"ok"`
	Checks []Check `json:"checks"`
}

func (r *Report) add(name, status, detail string) {
	r.Checks = append(r.Checks, Check{Name: name, Status: status, Detail: detail})
	if status == CheckFail {
		r.OK = false
	}
}

// Diagnose checks the local installation: OCR binaries, the store and an
// extraction backend. It opens nothing that outlives the call.
func Diagnose(ctx context.Context, cfg *common.Config, logger *slog.Logger) Report {
	if logger == nil {
		logger = slog.Default()
	}
	rep := Report{OK: true}

	if err := cfg.Validate(); err != nil {
		rep.add("config", CheckFail, err.Error())
	} else {
		rep.add("config", CheckOK, "")
	}

	extractor := NewOCR(cfg.OCR, logger)
	bins := extractor.Binaries()
	found := ocr.LookPath(bins...)
	for i, bin := range bins {
		path := found[bin]
		switch {
		case path != "":
			rep.add("bin:"+bin, CheckOK, path)
		case i < 3:
			rep.add("bin:"+bin, CheckFail, "not found on PATH")
		default:
			// only needed for HEIC photos
			rep.add("bin:"+bin, CheckWarn, "not found on PATH")
		}
	}

	sink, err := OpenSink(ctx, cfg.Store, logger)
	if err != nil {
		rep.add("store", CheckFail, err.Error())
	} else {
		recs, err := sink.List(ctx)
		if err != nil {
			rep.add("store", CheckFail, err.Error())
		} else {
			rep.add("store", CheckOK, fmt.Sprintf("%s, %d invoices", cfg.Store.Driver, len(recs)))
		}
		if err := sink.Close(); err != nil {
			logger.Warn("doctor.store.close_failed", "error", err)
		}
	}

	switch {
	case cfg.LLM.APIKey != "":
		rep.add("llm", CheckOK, fmt.Sprintf("%d model(s) via %s", len(cfg.LLM.Models), cfg.LLM.BaseURL))
	case cfg.Vertex.Project != "":
		rep.add("llm", CheckOK, "vertex "+cfg.Vertex.Model)
	default:
		rep.add("llm", CheckFail, "set OPENROUTER_API_KEY, OPENAI_API_KEY or VERTEX_PROJECT")
	}
	return rep
}
