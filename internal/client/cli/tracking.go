package cli

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	dto "github.com/prometheus/client_model/go"

	"github.com/dmitrijs2005/nextshape/internal/client/models"
	"github.com/dmitrijs2005/nextshape/internal/common"
)

var activityDescriptions = map[string]string{
	"sedentaire":   "no physical activity or desk work",
	"leger":        "walking or light activity 1-2 times a week",
	"modere":       "sport or moderate activity 3-5 times a week",
	"intense":      "daily exercise or intense physical activity",
	"tres_intense": "intensive training or very demanding physical work",
}

// numericRecordFields are the record fields sent as numbers.
var numericRecordFields = []string{"weight_kg", "height_cm", "imc", "bmr", "tdee", "calories_recommandees"}

// BMI computes the BMI and stores the measurements on the working record.
func (a *App) BMI(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("bmi <weight_kg> <height_cm>")
	}
	weight, err1 := strconv.ParseFloat(args[0], 64)
	height, err2 := strconv.ParseFloat(args[1], 64)
	if err1 != nil || err2 != nil {
		return usageError("bmi <weight_kg> <height_cm>")
	}
	if err := a.enter(ctx, surfaceBMI); err != nil {
		return err
	}

	bmi, err := a.working.SetMeasurements(ctx, weight, height)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "BMI: %.2f\n", bmi)
	return nil
}

func (a *App) Activity(ctx context.Context, args []string) error {
	if len(args) != 1 {
		for _, lvl := range models.ActivityLevels {
			fmt.Fprintf(a.out, "  %-13s %s\n", lvl, activityDescriptions[lvl])
		}
		return usageError("activity <level>")
	}
	if err := a.enter(ctx, surfaceCalories); err != nil {
		return err
	}
	return a.working.SetActivity(ctx, args[0])
}

func (a *App) Goal(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("goal <" + strings.Join(models.Goals, "|") + ">")
	}
	if err := a.enter(ctx, surfaceCalories); err != nil {
		return err
	}
	return a.working.SetGoal(ctx, args[0])
}

// Calories asks the server for the calorie figures of the working record.
func (a *App) Calories(ctx context.Context) error {
	if err := a.enter(ctx, surfaceCalories); err != nil {
		return err
	}
	out, err := a.working.CalculateCalories(ctx)
	if err != nil {
		return err
	}
	if out.Message != "" {
		fmt.Fprintln(a.out, out.Message)
	}
	a.printWorking()
	return nil
}

// Save stores today's record from the working record's measurements.
func (a *App) Save(ctx context.Context) error {
	if err := a.enter(ctx, surfaceHistory); err != nil {
		return err
	}
	w := a.working.Snapshot()
	if w.WeightKg == nil || w.HeightCm == nil {
		return common.NewError(common.KindInvalidMeasurement, "set measurements first: bmi <weight_kg> <height_cm>")
	}
	rec, err := a.records.Create(ctx, *w.WeightKg, *w.HeightCm)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved record #%d (%s, BMI %s)\n", rec.ID, rec.Date, floatOrDash(rec.BMI))
	return nil
}

// Records lists, refreshes, updates or deletes saved records.
func (a *App) Records(ctx context.Context, args []string) error {
	if err := a.enter(ctx, surfaceHistory); err != nil {
		return err
	}

	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "":
		if a.records.Len() == 0 {
			if err := a.records.FetchAll(ctx); err != nil {
				return err
			}
		}
	case "refresh":
		if err := a.records.FetchAll(ctx); err != nil {
			return err
		}
	case "update":
		if len(args) < 4 {
			return usageError("records update <id> <field> <value>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return usageError("records update <id> <field> <value>")
		}
		value, err := recordValue(args[2], strings.Join(args[3:], " "))
		if err != nil {
			return err
		}
		if err := a.records.Update(ctx, id, map[string]any{args[2]: value}); err != nil {
			return err
		}
	case "delete":
		if len(args) != 2 {
			return usageError("records delete <id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return usageError("records delete <id>")
		}
		if err := a.records.Delete(ctx, id); err != nil {
			return err
		}
	default:
		return usageError("records [refresh | update <id> <field> <value> | delete <id>]")
	}

	a.printRecords()
	return nil
}

func recordValue(field, raw string) (any, error) {
	if !slices.Contains(models.RecordFields, field) {
		return nil, common.Errorf(common.KindValidation, "unknown record field %q", field)
	}
	if !slices.Contains(numericRecordFields, field) {
		return raw, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, common.Errorf(common.KindValidation, "%s must be a number", field)
	}
	return v, nil
}

// Metrics prints the client's request counters.
func (a *App) Metrics(_ context.Context) error {
	mfs, err := a.registry.Gather()
	if err != nil {
		return err
	}
	if len(mfs) == 0 {
		fmt.Fprintln(a.out, "No requests yet")
		return nil
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			fmt.Fprintf(a.out, "%s%s %s\n", mf.GetName(), formatLabels(m.GetLabel()), formatValue(m))
		}
	}
	return nil
}

func formatLabels(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, lp := range pairs {
		parts = append(parts, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ",") + "}"
}

func formatValue(m *dto.Metric) string {
	switch {
	case m.GetCounter() != nil:
		return strconv.FormatFloat(m.GetCounter().GetValue(), 'f', -1, 64)
	case m.GetGauge() != nil:
		return strconv.FormatFloat(m.GetGauge().GetValue(), 'f', -1, 64)
	default:
		return "?"
	}
}
