package types

// SchemaVersion changes whenever CanonicalColumns or CanonicalRow change.
const SchemaVersion = 1

// CanonicalColumns is the fixed string column set of the dataset, in output
// order after YEAR and PERIOD.
var CanonicalColumns = []string{
	"NIU",
	"RAISON_SOCIALE",
	"SIGLE",
	"ACTIVITE_PRINCIPALE",
	"FORME_JURIDIQUE",
	"REGIME_FISCAL",
	"CENTRE_DE_RATTACHEMENT",
	"VILLE",
	"TELEPHONE",
}

// CanonicalRow is one normalized taxpayer record. The parquet tags define the
// on-disk schema; YEAR and PERIOD are stored as INT16.
type CanonicalRow struct {
	Year                 int32  `parquet:"name=YEAR, type=INT32, convertedtype=INT_16"`
	Period               int32  `parquet:"name=PERIOD, type=INT32, convertedtype=INT_16"`
	NIU                  string `parquet:"name=NIU, type=BYTE_ARRAY, convertedtype=UTF8"`
	RaisonSociale        string `parquet:"name=RAISON_SOCIALE, type=BYTE_ARRAY, convertedtype=UTF8"`
	Sigle                string `parquet:"name=SIGLE, type=BYTE_ARRAY, convertedtype=UTF8"`
	ActivitePrincipale   string `parquet:"name=ACTIVITE_PRINCIPALE, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	FormeJuridique       string `parquet:"name=FORME_JURIDIQUE, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	RegimeFiscal         string `parquet:"name=REGIME_FISCAL, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	CentreDeRattachement string `parquet:"name=CENTRE_DE_RATTACHEMENT, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Ville                string `parquet:"name=VILLE, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Telephone            string `parquet:"name=TELEPHONE, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func NewCanonicalRow(key PeriodKey) CanonicalRow {
	return CanonicalRow{Year: int32(key.Year), Period: int32(key.Period)}
}

// Columns returns pointers to the string columns in CanonicalColumns order.
func (r *CanonicalRow) Columns() []*string {
	return []*string{
		&r.NIU,
		&r.RaisonSociale,
		&r.Sigle,
		&r.ActivitePrincipale,
		&r.FormeJuridique,
		&r.RegimeFiscal,
		&r.CentreDeRattachement,
		&r.Ville,
		&r.Telephone,
	}
}

func (r CanonicalRow) Key() PeriodKey {
	return PeriodKey{Year: int(r.Year), Period: int(r.Period)}
}

// Value returns the named canonical column, or "" for unknown names.
func (r CanonicalRow) Value(column string) string {
	columns := r.Columns()
	for i, name := range CanonicalColumns {
		if name == column {
			return *columns[i]
		}
	}
	return ""
}
