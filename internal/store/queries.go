package store

import (
	sq "github.com/Masterminds/squirrel"

	"smartshop/price-service/internal/jobs"
	"smartshop/price-service/internal/variant"
)

// Placeholder formats per backend.
var (
	Postgres = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	SQLite   = sq.StatementBuilder.PlaceholderFormat(sq.Question)
)

// VariantColumns is the scan order used by every variant query.
var VariantColumns = []string{
	"p.id", "p.product_id", "p.color", "p.ram_gb", "p.storage_gb",
	"p.seller_store_id", "s.name", "p.product_link",
	"p.price", "p.currency", "p.availability",
	"p.shipping_cost", "p.discount", "p.main_img_url",
	"p.last_updated", "p.created_at",
}

// ProductColumns is the scan order used by product queries.
var ProductColumns = []string{
	"id", "name", "brand", "ram_gb", "storage_gb", "color", "main_img_url",
}

// AlertColumns is the scan order used by alert queries.
var AlertColumns = []string{
	"id", "user_id", "product_id", "threshold",
	"color", "ram_gb", "storage_gb", "is_disabled", "last_notified_at",
}

// SelectVariants selects prices joined with their seller store.
func SelectVariants(sb sq.StatementBuilderType) sq.SelectBuilder {
	return sb.Select(VariantColumns...).
		From("prices p").
		Join("seller_stores s ON s.id = p.seller_store_id")
}

// SelectProduct selects one product by id or, when f.ID is zero, by name.
func SelectProduct(sb sq.StatementBuilderType, f ProductFilter) sq.SelectBuilder {
	q := sb.Select(ProductColumns...).From("products")
	if f.ID != 0 {
		return q.Where(sq.Eq{"id": f.ID})
	}
	return q.Where(sq.Expr("LOWER(name) = LOWER(?)", f.Name)).OrderBy("id").Limit(1)
}

// SelectVariantByKey selects the variant owning the unique key columns.
func SelectVariantByKey(sb sq.StatementBuilderType, productID int64, color string, ramGB, storageGB int, storeID int64, link string) sq.SelectBuilder {
	return SelectVariants(sb).Where(sq.Eq{
		"p.product_id":      productID,
		"p.color":           color,
		"p.ram_gb":          ramGB,
		"p.storage_gb":      storageGB,
		"p.seller_store_id": storeID,
		"p.product_link":    link,
	})
}

// SelectActiveAlerts selects the enabled alerts of a product whose stored
// filter does not contradict f. Each set dimension of f matches alerts that
// are either unfiltered on it (NULL) or filtered to the same value. The
// caller still applies variant.Filter.Matches and the threshold in process.
func SelectActiveAlerts(sb sq.StatementBuilderType, productID int64, f variant.Filter) sq.SelectBuilder {
	q := sb.Select(AlertColumns...).
		From("price_alerts").
		Where(sq.Eq{"product_id": productID, "is_disabled": false})
	if f.Color != nil {
		q = q.Where(sq.Or{sq.Eq{"color": nil}, sq.Expr("LOWER(color) = LOWER(?)", *f.Color)})
	}
	if f.RAMGB != nil {
		q = q.Where(sq.Or{sq.Eq{"ram_gb": nil}, sq.Eq{"ram_gb": *f.RAMGB}})
	}
	if f.StorageGB != nil {
		q = q.Where(sq.Or{sq.Eq{"storage_gb": nil}, sq.Eq{"storage_gb": *f.StorageGB}})
	}
	return q.OrderBy("id")
}

// SelectScrapeUnits lists every scrapeable (product, variant) pair, or only
// those of one product when productID is non-zero.
func SelectScrapeUnits(sb sq.StatementBuilderType, productID int64) sq.SelectBuilder {
	q := sb.Select("product_id", "id").
		From("prices").
		Where(sq.NotEq{"product_link": ""})
	if productID != 0 {
		q = q.Where(sq.Eq{"product_id": productID})
	}
	return q.OrderBy("product_id", "id")
}

// SelectHistory lists the newest history entries of a variant.
func SelectHistory(sb sq.StatementBuilderType, variantID int64, limit int) sq.SelectBuilder {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}
	return sb.Select("id", "price_id", "price", "currency", "availability", "recorded_at").
		From("price_history").
		Where(sq.Eq{"price_id": variantID}).
		OrderBy("recorded_at DESC", "id DESC").
		Limit(uint64(limit))
}

// JobColumns is the scan order used by scraping job queries.
var JobColumns = []string{
	"id", "cycle_id", "product_id", "variant_id", "status", "variant_status",
	"reason", "retryable", "notified", "started_at", "finished_at",
}

// UpsertJobOutcome writes o, replacing the previous state of the same job.
// startedAt and finishedAt are passed in the backend's time representation.
func UpsertJobOutcome(sb sq.StatementBuilderType, o jobs.Outcome, startedAt, finishedAt any) sq.InsertBuilder {
	return sb.Insert("scraping_jobs").
		Columns(JobColumns...).
		Values(o.JobID, o.CycleID, o.ProductID, o.VariantID, string(o.Status), o.VariantStatus,
			o.Reason, o.Retryable, o.Notified, startedAt, finishedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			variant_status = EXCLUDED.variant_status,
			reason = EXCLUDED.reason,
			retryable = EXCLUDED.retryable,
			notified = EXCLUDED.notified,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at`)
}

// SelectJobOutcomes lists the jobs of one cycle.
func SelectJobOutcomes(sb sq.StatementBuilderType, cycleID string) sq.SelectBuilder {
	return sb.Select(JobColumns...).
		From("scraping_jobs").
		Where(sq.Eq{"cycle_id": cycleID}).
		OrderBy("product_id", "variant_id")
}
