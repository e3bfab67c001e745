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

// Package fixture seeds the passage and genealogy repositories from a YAML
// file. People are referred to by a short key inside the file; Apply maps
// the keys onto the ids the repository assigns.
//
//	passages:
//	  - source: census-1860
//	    locator: p. 4
//	    text: John Carpenter, age 10, born Ohio.
//	persons:
//	  - key: john
//	    given_name: John
//	    surname: Carpenter
//	    birth_year: 1850
//	relationships:
//	  - type: spouse
//	    person: john
//	    related: mary
//	    start_year: 1874
//	facts:
//	  - person: john
//	    type: occupation
//	    description: carpenter
//	    year: 1860
package fixture
