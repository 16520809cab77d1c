package service

import (
	"errors"
	"time"

	"github.com/gatehouse-labs/gatehouse/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrOrganizationNotFound  = errors.New("organization not found")
	ErrOrganizationNotEmpty  = errors.New("organization still has business units or members")
	ErrBusinessUnitNotFound  = errors.New("business unit not found")
	ErrBusinessUnitNotEmpty  = errors.New("business unit still has children or members")
	ErrParentUnitMismatch    = errors.New("parent unit belongs to a different organization")
	ErrOrganizationNameTaken = errors.New("organization name already taken")
)

type OrgServiceConfig struct {
	Database *gorm.DB
}

type OrgService struct {
	config OrgServiceConfig
}

func NewOrgService(config OrgServiceConfig) *OrgService {
	return &OrgService{
		config: config,
	}
}

func (osvc *OrgService) CreateOrganization(name string) (*model.Organization, error) {
	var count int64
	if err := osvc.config.Database.Model(&model.Organization{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrOrganizationNameTaken
	}

	now := time.Now().Unix()

	org := model.Organization{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := osvc.config.Database.Create(&org).Error; err != nil {
		return nil, err
	}

	return &org, nil
}

func (osvc *OrgService) GetOrganization(id string) (*model.Organization, error) {
	var org model.Organization
	err := osvc.config.Database.Where("id = ?", id).First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (osvc *OrgService) ListOrganizations() ([]model.Organization, error) {
	var orgs []model.Organization
	if err := osvc.config.Database.Order("name").Find(&orgs).Error; err != nil {
		return nil, err
	}
	return orgs, nil
}

func (osvc *OrgService) RenameOrganization(id string, name string) (*model.Organization, error) {
	org, err := osvc.GetOrganization(id)
	if err != nil {
		return nil, err
	}

	org.Name = name
	org.UpdatedAt = time.Now().Unix()

	if err := osvc.config.Database.Save(org).Error; err != nil {
		return nil, err
	}

	return org, nil
}

func (osvc *OrgService) DeleteOrganization(id string) error {
	return osvc.config.Database.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.BusinessUnit{}).Where("organization_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrOrganizationNotEmpty
		}

		if err := tx.Model(&model.User{}).Where("organization_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrOrganizationNotEmpty
		}

		res := tx.Where("id = ?", id).Delete(&model.Organization{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrOrganizationNotFound
		}
		return nil
	})
}

// Business units

func (osvc *OrgService) CreateBusinessUnit(organizationID string, parentID string, name string) (*model.BusinessUnit, error) {
	if _, err := osvc.GetOrganization(organizationID); err != nil {
		return nil, err
	}

	if parentID != "" {
		parent, err := osvc.GetBusinessUnit(parentID)
		if err != nil {
			return nil, err
		}
		if parent.OrganizationID != organizationID {
			return nil, ErrParentUnitMismatch
		}
	}

	now := time.Now().Unix()

	unit := model.BusinessUnit{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		ParentID:       parentID,
		Name:           name,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := osvc.config.Database.Create(&unit).Error; err != nil {
		return nil, err
	}

	return &unit, nil
}

func (osvc *OrgService) GetBusinessUnit(id string) (*model.BusinessUnit, error) {
	var unit model.BusinessUnit
	err := osvc.config.Database.Where("id = ?", id).First(&unit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBusinessUnitNotFound
		}
		return nil, err
	}
	return &unit, nil
}

func (osvc *OrgService) ListBusinessUnits(organizationID string) ([]model.BusinessUnit, error) {
	var units []model.BusinessUnit
	if err := osvc.config.Database.Where("organization_id = ?", organizationID).Order("name").Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

type UpdateBusinessUnitParams struct {
	Name     *string
	ParentID *string
}

func (osvc *OrgService) UpdateBusinessUnit(id string, params UpdateBusinessUnitParams) (*model.BusinessUnit, error) {
	unit, err := osvc.GetBusinessUnit(id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		unit.Name = *params.Name
	}
	if params.ParentID != nil {
		if *params.ParentID != "" {
			parent, err := osvc.GetBusinessUnit(*params.ParentID)
			if err != nil {
				return nil, err
			}
			if parent.OrganizationID != unit.OrganizationID {
				return nil, ErrParentUnitMismatch
			}
		}
		unit.ParentID = *params.ParentID
	}

	unit.UpdatedAt = time.Now().Unix()

	if err := osvc.config.Database.Save(unit).Error; err != nil {
		return nil, err
	}

	return unit, nil
}

// DeleteBusinessUnit refuses while children or members reference the unit.
func (osvc *OrgService) DeleteBusinessUnit(id string) error {
	return osvc.config.Database.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.BusinessUnit{}).Where("parent_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrBusinessUnitNotEmpty
		}

		if err := tx.Model(&model.User{}).Where("business_unit_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrBusinessUnitNotEmpty
		}

		res := tx.Where("id = ?", id).Delete(&model.BusinessUnit{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrBusinessUnitNotFound
		}
		return nil
	})
}
