package main

import (
	"testing"

	"github.com/VeRJiL/crawlerd/internal/debugsink"
	"github.com/VeRJiL/crawlerd/internal/jobhandler"
	"github.com/VeRJiL/crawlerd/internal/orderfeed"
	"github.com/VeRJiL/crawlerd/internal/vaultmodel"
)

func TestCheckParserModulesRegisteredPassesWhenAllKnown(t *testing.T) {
	handlers := jobhandler.NewRegistry()
	handlers.Register("video_downloader", func(vaultmodel.Config, orderfeed.Metadata, debugsink.Sink) jobhandler.Handler {
		return nil
	})

	configs := []vaultmodel.Config{
		{ConfigID: "cfg-1", JobParameters: vaultmodel.JobParameters{ParserModule: "video_downloader"}},
	}

	if err := checkParserModulesRegistered(configs, handlers); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckParserModulesRegisteredFailsOnUnknownModule(t *testing.T) {
	handlers := jobhandler.NewRegistry()
	configs := []vaultmodel.Config{
		{ConfigID: "cfg-1", JobParameters: vaultmodel.JobParameters{ParserModule: "nonexistent"}},
	}

	if err := checkParserModulesRegistered(configs, handlers); err == nil {
		t.Fatal("expected error for unregistered parser_module")
	}
}
