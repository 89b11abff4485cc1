package predictive

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Prediction is one scored (segment, campaign) pair.
type Prediction struct {
	SegmentID  int
	CampaignID string

	CampaignType     string
	Channel          string
	MessageSentiment string
	ValueTheme       string

	PredictedConversion float64
	ActualConversion    float64
	Error               float64

	PriceSensitivity  float64
	ChannelMatchScore float64
}

// FeatureImportance ranks one model input by its standardized weight.
type FeatureImportance struct {
	Feature    string
	Importance float64
}

// ModelSummary reports holdout performance and the ranked inputs.
type ModelSummary struct {
	RSquared  float64
	RMSE      float64
	MAE       float64
	TrainSize int
	TestSize  int

	FeatureImportance []FeatureImportance
}

// Regressor is a least-squares linear model over the engineered features.
type Regressor struct {
	weights   []float64
	intercept float64
}

// TrainRegressor fits the model on a seeded train/test split and scores it
// on the holdout. It needs more examples than features to be determined.
func TrainRegressor(features []FeatureRow, testFraction float64, seed int64) (*Regressor, *ModelSummary, error) {
	n := len(features)
	cols := len(FeatureNames)
	testN := int(float64(n) * testFraction)
	trainN := n - testN
	if trainN <= cols+1 {
		return nil, nil, fmt.Errorf("train regressor: %d training rows for %d features", trainN, cols)
	}
	if testN == 0 {
		return nil, nil, fmt.Errorf("train regressor: test fraction %g leaves no holdout rows for %d examples", testFraction, n)
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	perm := rng.Perm(n)
	testIdx := perm[:testN]
	trainIdx := perm[testN:]

	model, err := fit(features, trainIdx)
	if err != nil {
		return nil, nil, err
	}

	summary := &ModelSummary{
		TrainSize:         trainN,
		TestSize:          testN,
		FeatureImportance: model.importance(features),
	}
	summary.RSquared, summary.RMSE, summary.MAE = model.score(features, testIdx)
	return model, summary, nil
}

func fit(features []FeatureRow, idx []int) (*Regressor, error) {
	cols := len(FeatureNames)
	x := mat.NewDense(len(idx), cols+1, nil)
	y := mat.NewVecDense(len(idx), nil)
	for i, j := range idx {
		x.Set(i, 0, 1)
		for k, v := range features[j].Vector() {
			x.Set(i, k+1, v)
		}
		y.SetVec(i, features[j].Target)
	}

	var w mat.VecDense
	if err := w.SolveVec(x, y); err != nil {
		// A poorly conditioned system still yields a usable solution.
		if _, ok := err.(mat.Condition); !ok {
			return nil, fmt.Errorf("least squares solve: %w", err)
		}
	}

	model := &Regressor{intercept: w.AtVec(0), weights: make([]float64, cols)}
	for k := 0; k < cols; k++ {
		model.weights[k] = w.AtVec(k + 1)
	}
	return model, nil
}

// Predict scores one feature row.
func (r *Regressor) Predict(f FeatureRow) float64 {
	v := r.intercept
	for k, x := range f.Vector() {
		v += r.weights[k] * x
	}
	return v
}

// PredictAll scores every row and returns the predictions sorted by
// predicted conversion, best first.
func (r *Regressor) PredictAll(features []FeatureRow) []Prediction {
	out := make([]Prediction, len(features))
	for i, f := range features {
		predicted := r.Predict(f)
		out[i] = Prediction{
			SegmentID:  f.SegmentID,
			CampaignID: f.CampaignID,

			CampaignType:     f.CampaignType,
			Channel:          f.Channel,
			MessageSentiment: f.MessageSentiment,
			ValueTheme:       f.ValueTheme,

			PredictedConversion: predicted,
			ActualConversion:    f.Target,
			Error:               math.Abs(predicted - f.Target),

			PriceSensitivity:  f.PriceSensitivity,
			ChannelMatchScore: f.ChannelMatchScore,
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PredictedConversion > out[j].PredictedConversion
	})
	return out
}

func (r *Regressor) score(features []FeatureRow, idx []int) (r2, rmse, mae float64) {
	actual := make([]float64, len(idx))
	var ssRes, absSum float64
	for i, j := range idx {
		actual[i] = features[j].Target
		diff := r.Predict(features[j]) - features[j].Target
		ssRes += diff * diff
		absSum += math.Abs(diff)
	}

	mean := stat.Mean(actual, nil)
	var ssTot float64
	for _, a := range actual {
		d := a - mean
		ssTot += d * d
	}

	if ssTot != 0 {
		r2 = 1 - ssRes/ssTot
	}
	rmse = math.Sqrt(ssRes / float64(len(idx)))
	mae = absSum / float64(len(idx))
	return r2, rmse, mae
}

// importance scales each weight by its feature's spread so inputs on
// different ranges compare fairly, then ranks descending.
func (r *Regressor) importance(features []FeatureRow) []FeatureImportance {
	cols := len(FeatureNames)
	colVals := make([][]float64, cols)
	for _, f := range features {
		for k, v := range f.Vector() {
			colVals[k] = append(colVals[k], v)
		}
	}

	out := make([]FeatureImportance, cols)
	for k := 0; k < cols; k++ {
		std := 0.0
		if len(colVals[k]) > 1 {
			std = stat.StdDev(colVals[k], nil)
		}
		out[k] = FeatureImportance{
			Feature:    FeatureNames[k],
			Importance: math.Abs(r.weights[k]) * std,
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out
}
