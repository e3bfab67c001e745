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

// Package workflow answers genealogy questions with a fixed pipeline of
// stages driven by an explicit state machine:
//
//	Routing → Retrieving → (Extracting) → Synthesizing → Citing → Assessing → Finalized
//
// Each query gets its own QueryState. Stages return results that the Engine
// merges into the state; no stage writes another stage's fields. Recoverable
// stage failures are recorded and the pipeline continues. Only a failed
// synthesis LLM call ends a query in the Failed phase.
//
// The confidence policy in Assess is a pure function of the evidence, the
// extracted facts and the citations.
package workflow
