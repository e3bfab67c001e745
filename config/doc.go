// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the assistant's YAML configuration file.
//
// A file only needs the keys it changes; everything else keeps the value
// from Default. Example:
//
//	ai:
//	  completion_host: http://localhost:11434
//	  completion_model: llama3.1:8b
//	storage:
//	  backend: postgres
//	  url: postgres://kinfolk@localhost/kinfolk
//	workflow:
//	  top_k: 8
//	  store_timeout: 5s
//	metrics:
//	  addr: :9090
package config
