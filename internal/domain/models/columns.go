package models

// Column names of the raw series and of the engineered feature table.
const (
	ColAsset     = "crypto_name"
	ColDate      = "date"
	ColTimestamp = "timestamp"
	ColOpen      = "open"
	ColHigh      = "high"
	ColLow       = "low"
	ColClose     = "close"
	ColVolume    = "volume"
	ColMarketCap = "marketCap"

	ColLogPrice  = "log_price"
	ColLogReturn = "log_return"
	ColVol7d     = "vol_7d"
	ColVol30d    = "vol_30d"
	ColMA7       = "ma_7"
	ColMA30      = "ma_30"
	ColLiquidity = "liquidity"
	ColTR        = "tr"
	ColATR14     = "atr_14"
	ColTarget    = "vol_7d_target_next"

	ColPrediction = "prediction"
)

// PriceColumns must be present in any raw series; cells are parsed tolerantly.
var PriceColumns = []string{ColOpen, ColHigh, ColLow, ColClose, ColVolume, ColMarketCap}

// FeatureColumns lists the engineered columns in the order they are appended.
var FeatureColumns = []string{
	ColLogPrice, ColLogReturn, ColVol7d, ColVol30d, ColMA7, ColMA30,
	ColLiquidity, ColTR, ColATR14, ColTarget,
}

// ModelReadyColumns must all be non-null for a row to enter training.
var ModelReadyColumns = []string{
	ColLogReturn, ColVol7d, ColMA7, ColMA30, ColLiquidity, ColATR14, ColTarget,
}
