package exposure

import (
	"errors"
	"math"
)

var (
	errNoBracket    = errors.New("root is not bracketed")
	errNotConverged = errors.New("root finder did not converge")
)

// brentq finds a root of f in [xa, xb] with Brent's method (inverse quadratic
// interpolation, secant steps and bisection). f(xa) and f(xb) must not share a
// sign. The returned root satisfies |x - x*| <= xtol + rtol*|x*|.
func brentq(f func(float64) float64, xa, xb, xtol, rtol float64, maxIter int) (float64, int, error) {
	xpre, xcur := xa, xb
	fpre, fcur := f(xpre), f(xcur)

	if fpre == 0 {
		return xpre, 0, nil
	}
	if fcur == 0 {
		return xcur, 0, nil
	}
	if math.Signbit(fpre) == math.Signbit(fcur) {
		return 0, 0, errNoBracket
	}

	var xblk, fblk, spre, scur float64

	for i := 0; i < maxIter; i++ {
		if fpre != 0 && fcur != 0 && math.Signbit(fpre) != math.Signbit(fcur) {
			xblk, fblk = xpre, fpre
			spre = xcur - xpre
			scur = spre
		}
		if math.Abs(fblk) < math.Abs(fcur) {
			xpre, xcur, xblk = xcur, xblk, xcur
			fpre, fcur, fblk = fcur, fblk, fcur
		}

		delta := (xtol + rtol*math.Abs(xcur)) / 2
		sbis := (xblk - xcur) / 2
		if fcur == 0 || math.Abs(sbis) < delta {
			return xcur, i + 1, nil
		}

		if math.Abs(spre) > delta && math.Abs(fcur) < math.Abs(fpre) {
			var stry float64
			if xpre == xblk {
				// secant
				stry = -fcur * (xcur - xpre) / (fcur - fpre)
			} else {
				// inverse quadratic
				dpre := (fpre - fcur) / (xpre - xcur)
				dblk := (fblk - fcur) / (xblk - xcur)
				stry = -fcur * (fblk*dblk - fpre*dpre) / (dblk * dpre * (fblk - fpre))
			}
			if 2*math.Abs(stry) < math.Min(math.Abs(spre), 3*math.Abs(sbis)-delta) {
				spre = scur
				scur = stry
			} else {
				spre = sbis
				scur = sbis
			}
		} else {
			spre = sbis
			scur = sbis
		}

		xpre, fpre = xcur, fcur
		if math.Abs(scur) > delta {
			xcur += scur
		} else if sbis > 0 {
			xcur += delta
		} else {
			xcur -= delta
		}
		fcur = f(xcur)
	}

	return xcur, maxIter, errNotConverged
}
