// Package domain models flood-risk estimation for Sri Lankan districts.
//
// # Data Sources
//
// Weather comes from the Open-Meteo forecast API (current conditions, up to
// 72 hourly points and 7 daily points per coordinate, Asia/Colombo local
// time). River water levels come from gauge stations operated by the
// Irrigation Department; when no live feed is configured, plausible readings
// are synthesized from each station's warning level.
//
// # River Status
//
// A gauge reading is classified against the station's static thresholds,
// most severe first, with inclusive boundaries:
//
//	current >= danger*1.2  CRITICAL
//	current >= danger      DANGER
//	current >= warning     WARNING
//	otherwise              NORMAL
//
// FLOODING is accepted as a synonym of CRITICAL on rows read back from the
// store. RISING is reserved for feeds that report a tendency.
//
// # Risk Scoring
//
// Two formulas coexist and are kept separate. Each is consumed by callers
// that expect its own output range.
//
// Weather assessment ([AssessWeather]) uses weighted continuous factors:
//
//	rainfall24h    min(sum(rain, next 24h) / 100 * 100, 100)  weight 0.30
//	rainfall72h    min(sum(rain, next 72h) / 200 * 100, 100)  weight 0.25
//	soilSaturation min(humidity / 100 * 80, 80)               weight 0.20
//	forecast       hours(prob > 70, next 24h) / 24 * 100      weight 0.25
//	riverLevels    always 0 in this formula
//
//	score >= 75 CRITICAL | >= 50 HIGH | >= 25 MEDIUM | else LOW
//
// District prediction ([ScorePrediction]) is points based:
//
//	rainfall    >100mm 40 | >50 30 | >25 20 | >10 10 | else 0
//	river       >=danger 40 | >=warning 30 | >=0.8*warning 20 | >=0.6*warning 10
//	historical  min(20, historicalRisk*20)
//
//	score >= 70 CRITICAL | >= 50 HIGH | >= 30 MEDIUM | else LOW
//
// The district weather sync uses a third, rule-based classification of
// current conditions ([ClassifyCurrentConditions]).
//
// # Randomness
//
// Prediction confidence and synthetic gauge readings are placeholders for a
// real model and live telemetry. They draw from an injected [RandomSource]
// so runs can be reproduced from a seed. Scoring itself is deterministic.
package domain
