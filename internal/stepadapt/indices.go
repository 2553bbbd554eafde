package stepadapt

// Decision variables.
const (
	VarZmpX = iota
	VarZmpY
	VarSigma
	VarOffsetX
	VarOffsetY

	numVars
)

// Constraint rows.
const (
	RowLandingX = iota
	RowLandingY
	RowHull0
	RowHull1
	RowHull2
	RowHull3
	RowTiming

	numRows
)

const hullRows = RowHull3 - RowHull0 + 1
