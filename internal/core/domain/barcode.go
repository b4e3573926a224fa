package domain

type BarcodeFormat string

const (
	FormatUPC     BarcodeFormat = "UPC"
	FormatEAN     BarcodeFormat = "EAN"
	FormatQR      BarcodeFormat = "QR"
	FormatCode128 BarcodeFormat = "CODE128"
	FormatUnknown BarcodeFormat = "UNKNOWN"
)

// DecodedBarcode is the immutable result of classifying a raw scan.
// An unreadable or checksum-failing scan is still a value, not an error;
// Valid and Confidence carry the data quality for the caller to judge.
type DecodedBarcode struct {
	Raw        string        `json:"raw"`
	Normalized string        `json:"normalized"`
	Format     BarcodeFormat `json:"format"`
	Valid      bool          `json:"valid"`
	Confidence float64       `json:"confidence"`
}
