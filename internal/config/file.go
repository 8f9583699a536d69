package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// hclFile is the decoding target of a configuration file:
//
//	listen_addr = ":8080"
//
//	log {
//	  level  = "debug"
//	  format = "json"
//	}
//
//	store {
//	  driver     = "redis"
//	  redis_url  = "redis://localhost:6379/0"
//	  key_prefix = "asb"
//	  quiz_ttl   = "2h"
//	}
//
//	planner {
//	  url      = "https://n8n.example.com/webhook/asb-plan"
//	  timeout  = "30s"
//	  attempts = 2
//	}
//
//	progress {
//	  driver = "sqlite"
//	  dsn    = "file:studyflow.db"
//	}
//
// The content and events blocks follow the same pattern.
// Unknown attributes and blocks are rejected by the decoder.
type hclFile struct {
	ListenAddr *string      `hcl:"listen_addr,optional"`
	Log        *hclLog      `hcl:"log,block"`
	Store      *hclStore    `hcl:"store,block"`
	Planner    *hclPlanner  `hcl:"planner,block"`
	Content    *hclContent  `hcl:"content,block"`
	Progress   *hclProgress `hcl:"progress,block"`
	Events     *hclEvents   `hcl:"events,block"`
}

type hclLog struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
}

type hclStore struct {
	Driver     *string `hcl:"driver,optional"`
	RedisURL   *string `hcl:"redis_url,optional"`
	KeyPrefix  *string `hcl:"key_prefix,optional"`
	StateTTL   *string `hcl:"state_ttl,optional"`
	ContextTTL *string `hcl:"context_ttl,optional"`
	QuizTTL    *string `hcl:"quiz_ttl,optional"`
}

type hclPlanner struct {
	URL      *string `hcl:"url,optional"`
	Timeout  *string `hcl:"timeout,optional"`
	Attempts *int    `hcl:"attempts,optional"`
	Backoff  *string `hcl:"backoff,optional"`
}

type hclContent struct {
	SummaryURL *string `hcl:"summary_url,optional"`
	QuizURL    *string `hcl:"quiz_url,optional"`
}

type hclProgress struct {
	Driver *string `hcl:"driver,optional"`
	DSN    *string `hcl:"dsn,optional"`
}

type hclEvents struct {
	AMQPURL  *string `hcl:"amqp_url,optional"`
	Exchange *string `hcl:"exchange,optional"`
}

// LoadFile overlays the settings of the HCL file at path onto c.
func (c *Config) LoadFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return c.decodeHCL(src, path)
}

func (c *Config) decodeHCL(src []byte, filename string) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var parsed hclFile
	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	var durErr error
	setDur := func(src *string, dst *time.Duration) {
		if src == nil || durErr != nil {
			return
		}
		d, err := parseDuration(*src)
		if err != nil {
			durErr = fmt.Errorf("%s: %w", filename, err)
			return
		}
		*dst = d
	}

	setStr(parsed.ListenAddr, &c.ListenAddr)
	if l := parsed.Log; l != nil {
		setStr(l.Level, &c.LogLevel)
		setStr(l.Format, &c.LogFormat)
	}
	if s := parsed.Store; s != nil {
		setStr(s.Driver, &c.StoreDriver)
		setStr(s.RedisURL, &c.RedisURL)
		setStr(s.KeyPrefix, &c.KeyPrefix)
		setDur(s.StateTTL, &c.StateTTL)
		setDur(s.ContextTTL, &c.ContextTTL)
		setDur(s.QuizTTL, &c.QuizTTL)
	}
	if p := parsed.Planner; p != nil {
		setStr(p.URL, &c.PlannerURL)
		setDur(p.Timeout, &c.HTTPTimeout)
		setDur(p.Backoff, &c.PlannerBackoff)
		if p.Attempts != nil {
			c.PlannerAttempts = *p.Attempts
		}
	}
	if ct := parsed.Content; ct != nil {
		setStr(ct.SummaryURL, &c.SummaryURL)
		setStr(ct.QuizURL, &c.QuizURL)
	}
	if pr := parsed.Progress; pr != nil {
		setStr(pr.Driver, &c.ProgressDriver)
		setStr(pr.DSN, &c.ProgressDSN)
	}
	if e := parsed.Events; e != nil {
		setStr(e.AMQPURL, &c.AMQPURL)
		setStr(e.Exchange, &c.AMQPExchange)
	}
	return durErr
}

func setStr(src *string, dst *string) {
	if src != nil {
		*dst = *src
	}
}
