// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
)

func main() {
	fmt.Println("socialsync - Offline Action Queue and Sync Engine")
	fmt.Println("=================================================")
	fmt.Println()
	fmt.Println("socialsync records user writes (posts, stories, likes, saves, comments, messages,")
	fmt.Println("follows) in a durable local queue and replays them against the backend once the")
	fmt.Println("device is online, with bounded retries and idempotent delivery.")
	fmt.Println()

	fmt.Println("Available Examples:")
	fmt.Println()
	fmt.Println("1. Backend (examples/socialserver/)")
	fmt.Println("   REST API over PostgreSQL with JWT auth, media storage and idempotent writes")
	fmt.Println("   Run: DATABASE_URL=postgres://... go run ./examples/socialserver")
	fmt.Println()

	fmt.Println("2. Offline client CLI (examples/socialctl/)")
	fmt.Println("   Queue actions while offline, drain them with `sync` or keep `run`ning")
	fmt.Println("   Run: go run ./examples/socialctl --help")
	fmt.Println()
}
