package feedforward

import "compress/zlib"
import "encoding/json"
import "io"
import "math"
import "os"

import "github.com/google/uuid"
import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"

type linearJson struct {
	Activation Activation `json:"activation,omitempty"`
	Rows       int        `json:"rows"`
	Cols       int        `json:"cols"`
	W          []float64  `json:"w"`
	B          []float64  `json:"b,omitempty"`
}

type networkJson struct {
	Run      string       `json:"run"`
	Problem  string       `json:"problem,omitempty"`
	Residual *float64     `json:"residual,omitempty"`
	Layers   []linearJson `json:"layers"`
	Output   linearJson   `json:"output"`
}

func toJson(l Linear, act Activation) linearJson {
	r, c := l.W.Dims()
	o := linearJson{
		Activation: act,
		Rows:       r,
		Cols:       c,
		W:          mat.DenseCopyOf(l.W).RawMatrix().Data,
	}
	if l.B != nil {
		o.B = mat.DenseCopyOf(l.B).RawMatrix().Data
	}
	return o
}

// maxDim bounds the layer dimensions accepted from a checkpoint.
const maxDim = 1 << 16

func (l linearJson) linear() (Linear, error) {
	if l.Rows <= 0 || l.Cols <= 0 || l.Rows > maxDim || l.Cols > maxDim || len(l.W) != l.Rows*l.Cols {
		return Linear{}, errors.Wrapf(ErrArchitecture, "layer %dx%d with %d weights", l.Rows, l.Cols, len(l.W))
	}
	o := Linear{W: mat.NewDense(l.Rows, l.Cols, l.W)}
	if l.B != nil {
		if len(l.B) != l.Cols {
			return Linear{}, errors.Wrapf(ErrArchitecture, "bias of %d for %d outputs", len(l.B), l.Cols)
		}
		o.B = mat.NewDense(1, l.Cols, l.B)
	}
	return o, nil
}

// WriteZlibWeightsToFile writes model weights to a zlib compressed json file
func (f *Network) WriteZlibWeightsToFile(name string) error {
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	err = f.WriteZlibWeights(file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// WriteZlibWeights writes model weights to a writer
func (f *Network) WriteZlibWeights(w io.Writer) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if f.Meta.Run == uuid.Nil {
		f.Meta.Run = uuid.New()
	}
	doc := networkJson{
		Run:     f.Meta.Run.String(),
		Problem: f.Meta.Problem,
		Output:  toJson(*f.out, ""),
	}
	if r := f.Meta.Residual; !math.IsNaN(r) && !math.IsInf(r, 0) {
		doc.Residual = &r
	}
	for i, l := range f.layers {
		doc.Layers = append(doc.Layers, toJson(l, f.acts[i]))
	}
	zw := zlib.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(doc); err != nil {
		return errors.Wrap(err, "encode weights")
	}
	return zw.Close()
}

// ReadZlibWeightsFromFile reads model weights from a zlib compressed json file
func (f *Network) ReadZlibWeightsFromFile(name string) error {
	file, err := os.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()
	return f.ReadZlibWeights(file)
}

// ReadZlibWeights reads model weights from a reader. An empty network takes the architecture
// of the checkpoint; a network with layers must match it exactly.
func (f *Network) ReadZlibWeights(r io.Reader) error {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "open zlib stream")
	}
	defer zr.Close()

	var doc networkJson
	if err := json.NewDecoder(zr).Decode(&doc); err != nil {
		return errors.Wrap(err, "decode weights")
	}
	var loaded Network
	for _, lj := range doc.Layers {
		l, err := lj.linear()
		if err != nil {
			return err
		}
		if l.B == nil {
			return errors.Wrap(ErrArchitecture, "hidden layer without bias")
		}
		act, err := ParseActivation(string(lj.Activation))
		if err != nil {
			return err
		}
		loaded.layers = append(loaded.layers, l)
		loaded.acts = append(loaded.acts, act)
	}
	out, err := doc.Output.linear()
	if err != nil {
		return err
	}
	loaded.out = &out
	if err := loaded.Validate(); err != nil {
		return err
	}
	if len(f.layers) != 0 && !f.sameArchitecture(&loaded) {
		return errors.Wrap(ErrArchitecture, "checkpoint does not fit the network")
	}

	f.layers, f.acts, f.out = loaded.layers, loaded.acts, loaded.out
	f.Meta = Meta{Problem: doc.Problem, Residual: math.Inf(1)}
	if doc.Residual != nil {
		f.Meta.Residual = *doc.Residual
	}
	if id, err := uuid.Parse(doc.Run); err == nil {
		f.Meta.Run = id
	}
	return nil
}

func (f *Network) sameArchitecture(o *Network) bool {
	if len(f.layers) != len(o.layers) || f.out == nil || o.out == nil {
		return false
	}
	for i := range f.layers {
		if f.layers[i].In() != o.layers[i].In() || f.layers[i].Out() != o.layers[i].Out() || f.acts[i] != o.acts[i] {
			return false
		}
	}
	return f.out.In() == o.out.In() && f.out.Out() == o.out.Out() && (f.out.B == nil) == (o.out.B == nil)
}
