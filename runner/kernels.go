package runner

import (
	"fmt"
	"strings"
)

const (
	// blockSize is the inner-loop width of every kernel; a power of two for the
	// tree reduction in dot.
	blockSize = 256

	// maxReduceBlocks caps the number of partial sums dot returns to the host.
	maxReduceBlocks = 256
)

// kernelNames are built from the program source in this order.
var kernelNames = []string{"spmv", "jacobi", "residual", "precond", "assign", "axpy", "xpay", "dot"}

// launchShape returns the outer-loop counts for element-wise kernels and the
// reduction.
func launchShape(n int) (blocks, reduceBlocks int) {
	blocks = (n + blockSize - 1) / blockSize
	return blocks, min(blocks, maxReduceBlocks)
}

// preamble fixes the system size and launch shape at compile time.
func preamble(n int) string {
	blocks, reduceBlocks := launchShape(n)
	var sb strings.Builder
	sb.WriteString("typedef double real_t;\n")
	sb.WriteString("typedef unsigned int index_t;\n")
	sb.WriteString(fmt.Sprintf("#define NROWS %d\n", n))
	sb.WriteString(fmt.Sprintf("#define BLOCK %d\n", blockSize))
	sb.WriteString(fmt.Sprintf("#define NBLOCKS %d\n", blocks))
	sb.WriteString(fmt.Sprintf("#define NREDUCE %d\n", reduceBlocks))
	return sb.String()
}

// programSource returns the full OKL source of the PCG kernels for an n-row
// system.
func programSource(n int) string {
	return preamble(n) + pcgKernels
}

const pcgKernels = `
@kernel void spmv(const index_t *rowPtr, const index_t *colIdx, const real_t *vals,
                  const real_t *x, real_t *y) {
	for (int b = 0; b < NBLOCKS; ++b; @outer) {
		for (int t = 0; t < BLOCK; ++t; @inner) {
			const int i = b * BLOCK + t;
			if (i < NROWS) {
				real_t sum = 0;
				for (index_t k = rowPtr[i]; k < rowPtr[i + 1]; ++k) {
					sum += vals[k] * x[colIdx[k]];
				}
				y[i] = sum;
			}
		}
	}
}

@kernel void jacobi(const index_t *rowPtr, const index_t *colIdx, const real_t *vals,
                    real_t *invDiag) {
	for (int b = 0; b < NBLOCKS; ++b; @outer) {
		for (int t = 0; t < BLOCK; ++t; @inner) {
			const int i = b * BLOCK + t;
			if (i < NROWS) {
				real_t d = 0;
				for (index_t k = rowPtr[i]; k < rowPtr[i + 1]; ++k) {
					if (colIdx[k] == (index_t) i) {
						d = vals[k];
						break;
					}
				}
				invDiag[i] = (d != 0) ? 1 / d : 1;
			}
		}
	}
}

@kernel void residual(const real_t *b, const real_t *Ax, real_t *r) {
	for (int blk = 0; blk < NBLOCKS; ++blk; @outer) {
		for (int t = 0; t < BLOCK; ++t; @inner) {
			const int i = blk * BLOCK + t;
			if (i < NROWS) {
				r[i] = b[i] - Ax[i];
			}
		}
	}
}

@kernel void precond(const real_t *invDiag, const real_t *r, real_t *z) {
	for (int b = 0; b < NBLOCKS; ++b; @outer) {
		for (int t = 0; t < BLOCK; ++t; @inner) {
			const int i = b * BLOCK + t;
			if (i < NROWS) {
				z[i] = invDiag[i] * r[i];
			}
		}
	}
}

@kernel void assign(const real_t *src, real_t *dst) {
	for (int b = 0; b < NBLOCKS; ++b; @outer) {
		for (int t = 0; t < BLOCK; ++t; @inner) {
			const int i = b * BLOCK + t;
			if (i < NROWS) {
				dst[i] = src[i];
			}
		}
	}
}

// y += alpha * x
@kernel void axpy(const real_t *x, real_t *y, const real_t alpha) {
	for (int b = 0; b < NBLOCKS; ++b; @outer) {
		for (int t = 0; t < BLOCK; ++t; @inner) {
			const int i = b * BLOCK + t;
			if (i < NROWS) {
				y[i] += alpha * x[i];
			}
		}
	}
}

// y = x + beta * y
@kernel void xpay(const real_t *x, real_t *y, const real_t beta) {
	for (int b = 0; b < NBLOCKS; ++b; @outer) {
		for (int t = 0; t < BLOCK; ++t; @inner) {
			const int i = b * BLOCK + t;
			if (i < NROWS) {
				y[i] = x[i] + beta * y[i];
			}
		}
	}
}

// Partial dot products, one per reduction block; the host adds NREDUCE values.
@kernel void dot(const real_t *a, const real_t *b, real_t *partial) {
	for (int blk = 0; blk < NREDUCE; ++blk; @outer) {
		@shared real_t s[BLOCK];
		for (int t = 0; t < BLOCK; ++t; @inner) {
			real_t acc = 0;
			for (int i = blk * BLOCK + t; i < NROWS; i += NREDUCE * BLOCK) {
				acc += a[i] * b[i];
			}
			s[t] = acc;
		}
		for (int stride = BLOCK / 2; stride > 0; stride /= 2) {
			for (int t = 0; t < BLOCK; ++t; @inner) {
				if (t < stride) {
					s[t] += s[t + stride];
				}
			}
		}
		for (int t = 0; t < BLOCK; ++t; @inner) {
			if (t == 0) {
				partial[blk] = s[0];
			}
		}
	}
}
`
