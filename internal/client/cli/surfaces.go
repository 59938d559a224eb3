package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/nextshape/internal/client/models"
	"github.com/dmitrijs2005/nextshape/internal/common"
)

// Surfaces.
const (
	surfaceBMI      = "/calculatrice-imc"
	surfaceCalories = "/calculatrice-calories"
	surfaceHistory  = "/historique"
	surfaceTrend    = "/evolution"
	surfaceContact  = "/contact"
	surfaceSignUp   = "/inscription"
)

var errLoginRequired = common.NewError(common.KindValidation, "please log in first")

// enter moves to surface if the guard lets the user in, otherwise to the
// login surface with surface kept as the return path.
func (a *App) enter(ctx context.Context, surface string) error {
	d := a.guard.Resolve(surface)
	if !d.Allowed {
		a.Navigate(ctx, d.Redirect)
		return errLoginRequired
	}
	a.Navigate(ctx, surface)
	return nil
}

// Goto enters a surface and shows it.
func (a *App) Goto(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("goto <path>")
	}
	target := args[0]
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	if err := a.enter(ctx, target); err != nil {
		return err
	}
	return a.render(ctx, target)
}

func (a *App) render(ctx context.Context, surface string) error {
	switch strings.TrimSuffix(surface, "/") {
	case surfaceHistory:
		if err := a.records.FetchAll(ctx); err != nil {
			return err
		}
		a.printRecords()
	case surfaceTrend:
		if err := a.records.FetchAll(ctx); err != nil {
			return err
		}
		a.printTrend()
	case surfaceBMI, surfaceCalories:
		a.printWorking()
	case surfaceContact:
		fmt.Fprintln(a.out, "Questions or feedback: contact@nextshape.app")
	case surfaceSignUp:
		fmt.Fprintln(a.out, "Use 'send-code <email> registration', 'verify-code <email> <code>', then 'register'.")
	}
	return nil
}

func (a *App) printWorking() {
	w := a.working.Snapshot()
	fmt.Fprintf(a.out, "date: %s  gender: %s  age: %s\n", w.Date, orDash(w.Gender), intOrDash(w.Age))
	fmt.Fprintf(a.out, "weight: %s kg  height: %s cm  BMI: %s\n", floatOrDash(w.WeightKg), floatOrDash(w.HeightCm), floatOrDash(w.BMI))
	fmt.Fprintf(a.out, "activity: %s  goal: %s\n", orDash(w.ActivityLevel), orDash(w.Goal))
	fmt.Fprintf(a.out, "BMR: %s  TDEE: %s  recommended: %s kcal\n", floatOrDash(w.BMR), floatOrDash(w.TDEE), floatOrDash(w.RecommendedCalories))
}

func (a *App) printRecords() {
	list := a.records.List()
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No records")
		return
	}
	for _, r := range list {
		fmt.Fprintf(a.out, "#%d  %s  %s kg  %s cm  BMI %s  %s kcal\n",
			r.ID, r.Date, floatOrDash(r.WeightKg), floatOrDash(r.HeightCm), floatOrDash(r.BMI), floatOrDash(r.RecommendedCalories))
	}
}

// printTrend lists weight and BMI by date, oldest first.
func (a *App) printTrend() {
	list := a.records.List()
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No records")
		return
	}
	slices.SortStableFunc(list, func(x, y models.ProgressRecord) int {
		return strings.Compare(x.Date, y.Date)
	})
	for _, r := range list {
		fmt.Fprintf(a.out, "%s  %s kg  BMI %s\n", r.Date, floatOrDash(r.WeightKg), floatOrDash(r.BMI))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func floatOrDash(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *p)
}

func intOrDash(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *p)
}
