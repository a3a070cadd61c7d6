package control

type pid struct {
	gains    GainProfile
	integral float64
	lastErr  float64
	primed   bool
}

// Reconfigure installs a new gain profile. Accumulated state is cleared,
// since an integral wound up under one regime is meaningless under another.
func (p *pid) Reconfigure(gains GainProfile) {
	if gains == p.gains {
		return
	}
	p.gains = gains
	p.integral = 0
	p.lastErr = 0
	p.primed = false
}

// Next returns the discrete PID step for one error sample.
func (p *pid) Next(err float64) float64 {
	p.integral += err * p.gains.DT

	var deriv float64
	if p.primed {
		deriv = (err - p.lastErr) / p.gains.DT
	}
	p.lastErr = err
	p.primed = true

	return p.gains.P*err + p.gains.I*p.integral + p.gains.D*deriv
}
