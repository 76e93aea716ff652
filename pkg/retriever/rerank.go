// Copyright 2025 Kadir Pekel
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

package retriever

import "math"

const daySeconds = 24 * 60 * 60

// applyTemporalAndMetadataBoosts blends dense similarity with temporal
// decay exp(-ageDays/365)*temporalWeight and a multiplicative
// (1+boost) per truthy metadata flag named in boosts (§4.5 step 7,
// the "enhanced score" used when no cross-encoder is available).
func applyTemporalAndMetadataBoosts(candidates []Candidate, now int64, temporalWeight float64, enableTemporal bool, boosts map[string]float64, enableMetadata bool) {
	for i := range candidates {
		c := &candidates[i]
		score := c.Score

		if enableTemporal && c.UpdatedAt > 0 {
			ageDays := float64(now-c.UpdatedAt) / daySeconds
			if ageDays < 0 {
				ageDays = 0
			}
			decay := math.Exp(-ageDays/365) * temporalWeight
			score += decay
		}

		if enableMetadata {
			for field, boost := range boosts {
				if truthy(c.Metadata[field]) {
					score *= 1 + boost
				}
			}
		}

		c.Score = score
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != "" && x != "false" && x != "0"
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	default:
		return false
	}
}
