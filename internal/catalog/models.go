// Package catalog is the read-mostly reference data: colleges with their
// courses, entrance exams with their calendars, and scholarships.
package catalog

const DateLayout = "2006-01-02"

type Course struct {
	ID                int64    `json:"id"`
	Name              string   `json:"name"`
	Level             *string  `json:"level"`
	DurationYears     *float64 `json:"duration_years"`
	ApproxFeeTotal    *float64 `json:"approx_fee_total"`
	Stream            *string  `json:"stream"`
	EntranceExam      *string  `json:"entrance_exam"`
	DiscountAvailable bool     `json:"discount_available"`
	DiscountDetails   *string  `json:"discount_details"`
}

type College struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	State      string   `json:"state"`
	City       string   `json:"city"`
	WebsiteURL *string  `json:"website_url"`
	IsPartner  bool     `json:"is_partner"`
	Notes      *string  `json:"notes"`
	Courses    []Course `json:"courses"`
}

type CollegeFilter struct {
	State  string
	City   string
	Stream string
}

type ExamDate struct {
	ID        int64  `json:"id"`
	Year      int    `json:"year"`
	EventType string `json:"event_type"`
	Date      string `json:"date"`
}

type Exam struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Level           *string    `json:"level"`
	Stream          *string    `json:"stream"`
	OfficialWebsite *string    `json:"official_website"`
	DescriptionEN   *string    `json:"description_en"`
	DescriptionHI   *string    `json:"description_hi"`
	Dates           []ExamDate `json:"dates"`
}

type ExamFilter struct {
	Year   int // 0 means any
	Stream string
	Level  string
}

type Scholarship struct {
	ID                   int64   `json:"id"`
	Name                 string  `json:"name"`
	ProviderType         *string `json:"provider_type"`
	ProviderName         *string `json:"provider_name"`
	Level                *string `json:"level"`
	MinClassOrCourse     *string `json:"min_class_or_course"`
	EligibilitySummaryEN *string `json:"eligibility_summary_en"`
	EligibilitySummaryHI *string `json:"eligibility_summary_hi"`
	AmountDescription    *string `json:"amount_description"`
	ApplicationURL       *string `json:"application_url"`
	State                *string `json:"state"`
	LastDate             *string `json:"last_date"`
}

type ScholarshipFilter struct {
	Level        string
	State        string
	ProviderType string
}
