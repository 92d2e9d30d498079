package spectral

import (
	"fmt"

	"github.com/RyanBlaney/sonido-cusum/config"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Region is one of the four regional EEG channels of the double banana montage.
type Region string

const (
	LeftLateral       Region = "LL"
	LeftParasagittal  Region = "LP"
	RightParasagittal Region = "RP"
	RightLateral      Region = "RL"
)

// Regions lists the regions in display order.
var Regions = []Region{LeftLateral, LeftParasagittal, RightParasagittal, RightLateral}

// ElectrodePair is a bipolar derivation To - From.
type ElectrodePair struct {
	From string
	To   string
}

// DifferencePairs are the four bipolar derivations of each region, front to back.
var DifferencePairs = map[Region][]ElectrodePair{
	LeftLateral:       {{"fp1", "f7"}, {"f7", "t3"}, {"t3", "t5"}, {"t5", "o1"}},
	LeftParasagittal:  {{"fp1", "f3"}, {"f3", "c3"}, {"c3", "p3"}, {"p3", "o1"}},
	RightParasagittal: {{"fp2", "f4"}, {"f4", "c4"}, {"c4", "p4"}, {"p4", "o2"}},
	RightLateral:      {{"fp2", "f8"}, {"f8", "t4"}, {"t4", "t6"}, {"t6", "o2"}},
}

// ElectrodeIndex is the column of each 10-20 electrode in a recording matrix.
var ElectrodeIndex = map[string]int{
	"fp1": 0, "f3": 1, "c3": 2, "p3": 3, "o1": 4,
	"fp2": 5, "f4": 6, "c4": 7, "p4": 8, "o2": 9,
	"f7": 10, "t3": 11, "t5": 12,
	"f8": 13, "t4": 14, "t6": 15,
	"fz": 16, "cz": 17, "pz": 18,
}

// Montage turns a multi-electrode recording into one averaged spectrogram per region.
type Montage struct {
	spectrogram *Spectrogram
}

func NewMontage(s *Spectrogram) *Montage {
	if s == nil {
		s = NewSpectrogram()
	}
	return &Montage{spectrogram: s}
}

// RegionSpectrogram computes the spectrogram of each bipolar difference of
// region in data (samples x electrodes, columns per ElectrodeIndex) and
// returns their element-wise mean.
func (m *Montage) RegionSpectrogram(data mat.Matrix, region Region, cfg config.SpectrogramConfig) (*mat.Dense, error) {
	pairs, ok := DifferencePairs[region]
	if !ok {
		return nil, fmt.Errorf("unknown region %q", region)
	}
	samples, electrodes := data.Dims()

	from := make([]float64, samples)
	diff := make([]float64, samples)
	var avg *mat.Dense
	for _, p := range pairs {
		fi, ti := ElectrodeIndex[p.From], ElectrodeIndex[p.To]
		if fi >= electrodes || ti >= electrodes {
			return nil, fmt.Errorf("region %s needs electrode columns %d and %d, recording has %d", region, fi, ti, electrodes)
		}
		mat.Col(from, fi, data)
		mat.Col(diff, ti, data)
		floats.Sub(diff, from)

		spec, err := m.spectrogram.Compute(diff, cfg)
		if err != nil {
			return nil, fmt.Errorf("region %s pair %s-%s: %w", region, p.From, p.To, err)
		}
		if avg == nil {
			avg = spec
			continue
		}
		avg.Add(avg, spec)
	}

	avg.Scale(1/float64(len(pairs)), avg)
	return avg, nil
}

// Spectrograms computes RegionSpectrogram for every region.
func (m *Montage) Spectrograms(data mat.Matrix, cfg config.SpectrogramConfig) (map[Region]*mat.Dense, error) {
	out := make(map[Region]*mat.Dense, len(Regions))
	for _, r := range Regions {
		spec, err := m.RegionSpectrogram(data, r, cfg)
		if err != nil {
			return nil, err
		}
		out[r] = spec
	}
	return out, nil
}
