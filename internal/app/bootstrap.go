package app

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lydistories/internal/util"
	"lydistories/pkg/auth"
	"lydistories/pkg/domain"
)

// BootstrapParams configures first-run seeding.
type BootstrapParams struct {
	AdminEmail    string
	AdminPassword string
	SeedCatalog   bool
}

// Bootstrap makes a fresh deployment usable. Without it no account can
// reach the admin API: registration always assigns the reader role and
// role promotion itself requires an admin. When no admin account exists
// yet, one is created from the configured credentials; when SeedCatalog
// is set and the catalog is empty, a starter catalog is inserted.
// Bootstrap is idempotent and safe to run on every startup.
func (a *App) Bootstrap(p BootstrapParams) error {
	if err := a.seedAdmin(p.AdminEmail, p.AdminPassword); err != nil {
		return err
	}
	if p.SeedCatalog {
		if err := a.seedCatalog(); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) seedAdmin(email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		slog.Warn("no admin credentials configured, skipping admin bootstrap")
		return nil
	}
	admins, err := a.store.CountUsersByRole(domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if admins > 0 {
		return nil
	}
	taken, err := a.store.HasUserEmail(email)
	if err != nil {
		return fmt.Errorf("check admin email: %w", err)
	}
	if taken {
		return fmt.Errorf("bootstrap: admin email %s belongs to a non-admin account", email)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return fmt.Errorf("bootstrap admin password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := domain.User{
		ID:           util.NewID(),
		Name:         "Admin",
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.SaveUser(admin); err != nil {
		return fmt.Errorf("save admin: %w", err)
	}
	slog.Info("seeded initial admin", "email", email)
	return nil
}

// seedCatalog inserts sample items so a fresh install has something to
// browse. It only runs against an empty catalog.
func (a *App) seedCatalog() error {
	count, err := a.store.ContentCount()
	if err != nil {
		return fmt.Errorf("count content: %w", err)
	}
	if count > 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, item := range sampleCatalog {
		item.ID = util.NewID()
		item.CreatedAt = now
		item.UpdatedAt = now
		if err := a.store.SaveContent(item); err != nil {
			return fmt.Errorf("seed content %q: %w", item.Title, err)
		}
	}
	slog.Info("seeded sample catalog", "items", len(sampleCatalog))
	return nil
}

var sampleCatalog = []domain.Content{
	{
		Title:       "The Art of Programming",
		Author:      "John Smith",
		Category:    domain.CategoryBook,
		Description: "A comprehensive guide to modern programming paradigms and best practices.",
		PreviewText: "Chapter 1: Introduction to Programming\n\nProgramming is the art of telling a computer what to do. In this comprehensive guide, we'll explore the fundamental concepts that every programmer should know...",
		FullText:    "Chapter 1: Introduction to Programming\n\nProgramming is the art of telling a computer what to do. In this comprehensive guide, we'll explore the fundamental concepts that every programmer should know.\n\nChapter 2: Variables and Data Types\n\nEvery program needs to store and manipulate data. Variables are the containers that hold this data, and understanding data types is crucial for writing efficient code.\n\nChapter 3: Control Flow\n\nControl flow determines the order in which statements are executed.\n\nChapter 4: Functions\n\nFunctions are reusable blocks of code that perform a specific task.\n\nChapter 5: Object-Oriented Programming\n\nOOP is a programming paradigm that organizes code into objects that contain data and behavior.",
		PageCount:   250,
		Price:       15000,
		IsFeatured:  true,
	},
	{
		Title:       "Study Guide: Data Science Fundamentals",
		Author:      "Jane Doe",
		Category:    domain.CategoryGuide,
		Description: "Master the basics of data science with this comprehensive study guide covering statistics, machine learning, and data visualization.",
		PreviewText: "Module 1: Introduction to Data Science\n\nData science is a multidisciplinary field that uses scientific methods, processes, algorithms, and systems to extract knowledge from data...",
		FullText:    "Module 1: Introduction to Data Science\n\nData science is a multidisciplinary field that uses scientific methods, processes, algorithms, and systems to extract knowledge from data.\n\nModule 2: Statistics for Data Science\n\nKey concepts include descriptive statistics (mean, median, mode, standard deviation) and inferential statistics (hypothesis testing, confidence intervals, regression analysis).\n\nModule 3: Machine Learning\n\nMachine learning is a subset of AI that enables systems to learn from data: supervised, unsupervised, and reinforcement learning.",
		PageCount:   180,
		Price:       12000,
		IsFeatured:  true,
	},
	{
		Title:       "Understanding Cloud Computing",
		Author:      "Tech Weekly",
		Category:    domain.CategoryArticle,
		Description: "An in-depth article exploring the evolution and future of cloud computing technologies.",
		PreviewText: "Cloud computing has revolutionized the way businesses and individuals use technology. From simple file storage to complex AI workloads...",
		FullText:    "Cloud computing has revolutionized the way businesses and individuals use technology.\n\nThe Evolution of Cloud Computing:\n\n2000s: Amazon Web Services launched, marking the beginning of modern cloud computing.\n\n2010s: Cloud adoption exploded with services like Google Cloud, Microsoft Azure, and countless SaaS applications.\n\n2020s: Edge computing, serverless architectures, and AI-powered cloud services became mainstream.\n\nTypes of Cloud Services: IaaS, PaaS, and SaaS.\n\nBenefits: scalability, cost efficiency, global accessibility, automatic updates.",
		PageCount:   30,
		Price:       5000,
	},
	{
		Title:       "API Design Best Practices",
		Author:      "Developer Docs",
		Category:    domain.CategoryDocument,
		Description: "Official documentation on designing clean, maintainable, and scalable APIs for modern applications.",
		PreviewText: "API Design Principles\n\nA well-designed API is the cornerstone of any successful software platform...",
		FullText:    "API Design Principles\n\nA well-designed API is the cornerstone of any successful software platform.\n\n1. Use RESTful Conventions: nouns for resources, HTTP methods, appropriate status codes.\n\n2. Authentication & Authorization: OAuth 2.0 or JWT tokens, role-based access control, always HTTPS.\n\n3. Versioning: URL versioning, backward compatibility, graceful deprecation.\n\n4. Error Handling: consistent error formats with codes and messages.\n\n5. Documentation: OpenAPI specifications with request/response examples.",
		PageCount:   45,
		Price:       8000,
	},
	{
		Title:       "The History of African Literature",
		Author:      "Amara Okafor",
		Category:    domain.CategoryBook,
		Description: "A journey through centuries of African literary traditions, from oral storytelling to modern novels.",
		PreviewText: "Part I: The Roots of African Storytelling\n\nLong before the written word reached the African continent, communities passed down their histories, values, and wisdom through oral traditions...",
		FullText:    "Part I: The Roots of African Storytelling\n\nLong before the written word reached the African continent, communities passed down their histories, values, and wisdom through oral traditions.\n\nThe griots of West Africa, the storytellers of East Africa, and the praise singers of Southern Africa all played crucial roles in preserving cultural memory.\n\nPart II: Colonial Period Literature\n\nWriters like Chinua Achebe, Ngugi wa Thiong'o, and Wole Soyinka used the colonizer's language to tell African stories.\n\nPart III: Post-Independence Voices\n\nAfter independence, African writers grappled with themes of identity, nation-building, and the legacy of colonialism.\n\nPart IV: Contemporary African Literature\n\nToday, African literature thrives globally with authors like Chimamanda Ngozi Adichie, Yaa Gyasi, and Petina Gappah.",
		PageCount:   320,
		Price:       18000,
		IsFeatured:  true,
	},
}
