// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

// Package openai embeds text with the OpenAI Embeddings API, or any
// compatible gateway reachable through a base URL.
package openai
