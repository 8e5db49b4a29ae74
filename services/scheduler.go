package services

import (
	"log"
	"time"

	"yield-vault-backend/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// StartOnchainScheduler refreshes vault APY from DeFindex every 15 minutes,
// updating the vault row and appending a metric sample. One vault failing
// does not stop the sweep; nothing is retried until the next tick.
func (s *VaultService) StartOnchainScheduler() {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("[Scheduler] failed to start: %v", err)
		return
	}
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(15*time.Minute),
		gocron.NewTask(s.RefreshVaultMetrics),
	)

	log.Println("✅ On-chain update scheduler running (every 15m)")
}

// RefreshVaultMetrics performs one sweep over all vaults.
func (s *VaultService) RefreshVaultMetrics() {
	var vaults []models.Vault
	if err := s.DB.Find(&vaults).Error; err != nil {
		log.Printf("[Scheduler] DB error: %v", err)
		return
	}

	for _, v := range vaults {
		apy, err := s.Market.GetVaultApy(v.ContractAddress)
		if err != nil {
			log.Printf("[Scheduler] APY fetch failed for %s: %v", v.ContractAddress, err)
			continue
		}

		if err := s.DB.Model(&v).Update("apy", apy).Error; err != nil {
			log.Printf("[Scheduler] Failed to update vault %s: %v", v.ID, err)
			continue
		}
		metric := models.VaultMetric{
			ID:      uuid.NewString(),
			VaultID: v.ID,
			APY:     apy,
			Date:    time.Now(),
		}
		if err := s.DB.Create(&metric).Error; err != nil {
			log.Printf("[Scheduler] Failed to record metric for %s: %v", v.ID, err)
		}
	}
}
