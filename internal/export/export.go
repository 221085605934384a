// Package export writes moderation reports and map extracts from the
// bench table.
package export

import (
	"strconv"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/benchradar/benchradar/internal/model"
)

var xlsxHeader = []string{
	"id", "status", "latitude", "longitude", "title", "description",
	"main_photo_url", "created_by", "created_at", "photo_count",
}

// WriteXLSX writes one spreadsheet row per bench, header first.
func WriteXLSX(path string, rows []model.AdminRow) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("benches")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	hdr := sheet.AddRow()
	for _, h := range xlsxHeader {
		hdr.AddCell().SetString(h)
	}

	for _, r := range rows {
		b := r.Bench
		row := sheet.AddRow()
		row.AddCell().SetString(b.ID)
		row.AddCell().SetString(string(b.Status))
		row.AddCell().SetFloatWithFormat(b.Latitude, "0.000000")
		row.AddCell().SetFloatWithFormat(b.Longitude, "0.000000")
		row.AddCell().SetString(b.Title)
		row.AddCell().SetString(b.Description)
		row.AddCell().SetString(b.MainPhotoURL)
		row.AddCell().SetString(r.CreatedBy)
		row.AddCell().SetString(r.CreatedAt.UTC().Format(time.RFC3339))
		row.AddCell().SetString(strconv.Itoa(len(r.PhotoURLs)))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	zap.L().Info("export: wrote spreadsheet", zap.String("path", path), zap.Int("rows", len(rows)))
	return nil
}

// WriteShapefile writes benches as a point shapefile with id, status, and
// description attributes.
func WriteShapefile(path string, benches []model.Bench) error {
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", path)
	}
	defer w.Close()

	w.SetFields([]shp.Field{
		shp.StringField("ID", 36),
		shp.StringField("STATUS", 10),
		shp.StringField("DESCR", 120),
	})

	for i, b := range benches {
		// Shapefile points are X=longitude, Y=latitude.
		w.Write(&shp.Point{X: b.Longitude, Y: b.Latitude})
		if err := w.WriteAttribute(i, 0, b.ID); err != nil {
			return eris.Wrap(err, "export: write attribute")
		}
		if err := w.WriteAttribute(i, 1, string(b.Status)); err != nil {
			return eris.Wrap(err, "export: write attribute")
		}
		desc := b.Description
		if len(desc) > 120 {
			desc = desc[:120]
		}
		if err := w.WriteAttribute(i, 2, desc); err != nil {
			return eris.Wrap(err, "export: write attribute")
		}
	}

	zap.L().Info("export: wrote shapefile", zap.String("path", path), zap.Int("points", len(benches)))
	return nil
}
