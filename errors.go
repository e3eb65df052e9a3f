/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"log"
	"time"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}
